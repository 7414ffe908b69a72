package dropship

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonnyallum/blmotorcyclesltd/internal/domain/models"
	"github.com/jonnyallum/blmotorcyclesltd/internal/errs"
	"github.com/jonnyallum/blmotorcyclesltd/internal/retry"
)

type sentMail struct {
	to, cc, subject, body string
}

type fakeSender struct {
	sent     []sentMail
	failures int
	err      error
}

func (f *fakeSender) Send(to, cc, subject, body string) error {
	if f.failures > 0 {
		f.failures--
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, cc: cc, subject: subject, body: body})
	return nil
}

func testConfig() Config {
	return Config{
		SupplierEmail: "sales@bikeit.co.uk",
		FromEmail:     "brett@blmotorcyclesltd.co.uk",
		Phone:         "07881274193",
		CompanyNo:     "14122962",
		WebsiteURL:    "https://blmotorcycles.com",
	}
}

func testOrder() models.Order {
	return models.Order{
		OrderID:       "BL-A1B2C3D4",
		CustomerName:  "Jane Rider",
		CustomerEmail: "jane@example.com",
		CustomerPhone: "07000000000",
		AddressLine1:  "1 High Street",
		City:          "Portsmouth",
		Postcode:      "PO1 1AA",
		Country:       "GB",
		TotalAmount:   57.99,
		CreatedAt:     time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		Items: []models.OrderItem{
			{ProductName: "Brake Pads Front", ProductSKU: "BRK001", Quantity: 1, UnitPrice: 51.99, TotalPrice: 51.99},
		},
	}
}

func TestSendSupplierOrder(t *testing.T) {
	sender := &fakeSender{}
	queue := retry.NewQueue(zap.NewNop())
	svc := NewService(testConfig(), sender, queue, zap.NewNop())

	require.NoError(t, svc.SendSupplierOrder(context.Background(), testOrder()))
	require.Len(t, sender.sent, 1)

	mail := sender.sent[0]
	assert.Equal(t, "sales@bikeit.co.uk", mail.to)
	assert.Equal(t, "brett@blmotorcyclesltd.co.uk", mail.cc)
	assert.Equal(t, "New Order from B&L Motorcycles - BL-A1B2C3D4", mail.subject)
	assert.Contains(t, mail.body, "Order ID: BL-A1B2C3D4")
	assert.Contains(t, mail.body, "Order Date: 14/03/2025 09:30")
	assert.Contains(t, mail.body, "Total Amount: £57.99")
	assert.Contains(t, mail.body, "SKU: BRK001")
	assert.Contains(t, mail.body, "Unit Price: £51.99")
	assert.Contains(t, mail.body, "direct dispatch to customer")
	// No second address line, no blank line in the address block.
	assert.Contains(t, mail.body, "1 High Street\nPortsmouth\nPO1 1AA")
	assert.Zero(t, queue.Status().TotalOperations)
}

func TestSendOrderConfirmation(t *testing.T) {
	sender := &fakeSender{}
	queue := retry.NewQueue(zap.NewNop())
	svc := NewService(testConfig(), sender, queue, zap.NewNop())

	order := testOrder()
	order.AddressLine2 = "Flat 2"
	require.NoError(t, svc.SendOrderConfirmation(context.Background(), order))
	require.Len(t, sender.sent, 1)

	mail := sender.sent[0]
	assert.Equal(t, "jane@example.com", mail.to)
	assert.Empty(t, mail.cc)
	assert.Equal(t, "Order Confirmation - BL-A1B2C3D4 - B&L Motorcycles", mail.subject)
	assert.Contains(t, mail.body, "Dear Jane Rider,")
	assert.Contains(t, mail.body, "1 High Street\nFlat 2\nPortsmouth")
	assert.Contains(t, mail.body, "WHAT HAPPENS NEXT")
	assert.Contains(t, mail.body, "Company No: 14122962")
}

func TestDeliveryRetriedThenSucceeds(t *testing.T) {
	sender := &fakeSender{failures: 1, err: errs.NewDeliveryError(errors.New("relay refused"))}
	queue := retry.NewQueue(zap.NewNop())
	svc := NewService(testConfig(), sender, queue, zap.NewNop())

	require.NoError(t, svc.SendSupplierOrder(context.Background(), testOrder()))
	assert.Len(t, sender.sent, 1)
	assert.Zero(t, queue.Status().TotalOperations)
}

func TestNonRetryableFailureIsQueued(t *testing.T) {
	sender := &fakeSender{failures: 1, err: errors.New("invalid recipient")}
	queue := retry.NewQueue(zap.NewNop())
	svc := NewService(testConfig(), sender, queue, zap.NewNop())

	order := testOrder()
	err := svc.SendOrderConfirmation(context.Background(), order)
	require.Error(t, err)

	status := queue.Status()
	assert.Equal(t, 1, status.TotalOperations)
	assert.Equal(t, 1, status.OperationsByType[retry.OpOrderConfirmation])
}

func TestQueuedHandlerRedelivers(t *testing.T) {
	sender := &fakeSender{}
	queue := retry.NewQueue(zap.NewNop())
	svc := NewService(testConfig(), sender, queue, zap.NewNop())
	queue.Register(retry.OpDropShipNotification, svc.SupplierOrderHandler())

	payload, err := json.Marshal(testOrder())
	require.NoError(t, err)
	queue.Enqueue(retry.OpDropShipNotification, payload, errors.New("smtp down"))
	queue.Drain(context.Background())

	assert.Zero(t, queue.Status().TotalOperations)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "sales@bikeit.co.uk", sender.sent[0].to)
}

func TestQueuedHandlerRejectsMalformedPayload(t *testing.T) {
	svc := NewService(testConfig(), &fakeSender{}, retry.NewQueue(zap.NewNop()), zap.NewNop())
	err := svc.ConfirmationHandler()(context.Background(), []byte("{not json"))
	require.Error(t, err)
	assert.True(t, errs.IsParse(err))
}
