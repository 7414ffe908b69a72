// Package dropship turns paid orders into supplier purchase emails and
// customer confirmations.
package dropship

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/jonnyallum/blmotorcyclesltd/internal/adapters/mailer"
	"github.com/jonnyallum/blmotorcyclesltd/internal/domain/models"
	"github.com/jonnyallum/blmotorcyclesltd/internal/errs"
	"github.com/jonnyallum/blmotorcyclesltd/internal/retry"
)

var emailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dropship_emails_sent_total",
	Help: "Drop-ship and confirmation emails by kind and outcome.",
}, []string{"kind", "outcome"})

// Config identifies the shop and the supplier inbox.
type Config struct {
	SupplierEmail string
	FromEmail     string
	Phone         string
	CompanyNo     string
	WebsiteURL    string
}

// Service composes and delivers the two order emails.
type Service struct {
	cfg    Config
	sender mailer.Sender
	queue  *retry.Queue
	log    *zap.Logger
}

// NewService wires the email automation.
func NewService(cfg Config, sender mailer.Sender, queue *retry.Queue, log *zap.Logger) *Service {
	return &Service{cfg: cfg, sender: sender, queue: queue, log: log}
}

type emailData struct {
	Order models.Order
	Cfg   Config
}

var templateFuncs = template.FuncMap{
	"gbp": func(v float64) string { return fmt.Sprintf("£%.2f", v) },
	"orderDate": func(o models.Order) string {
		return o.CreatedAt.Format("02/01/2006 15:04")
	},
}

var supplierTemplate = template.Must(template.New("supplier").Funcs(templateFuncs).Parse(`Dear Bike It Sales Team,

Please process the following order for direct dispatch to our customer:

ORDER DETAILS:
Order ID: {{.Order.OrderID}}
Order Date: {{orderDate .Order}}
Total Amount: {{gbp .Order.TotalAmount}}

CUSTOMER DETAILS:
Name: {{.Order.CustomerName}}
Email: {{.Order.CustomerEmail}}
Phone: {{.Order.CustomerPhone}}

DELIVERY ADDRESS:
{{.Order.CustomerName}}
{{.Order.AddressLine1}}
{{if .Order.AddressLine2}}{{.Order.AddressLine2}}
{{end}}{{.Order.City}}
{{.Order.Postcode}}
{{.Order.Country}}

ITEMS ORDERED:
{{range .Order.Items}}
Product: {{.ProductName}}
SKU: {{.ProductSKU}}
Quantity: {{.Quantity}}
Unit Price: {{gbp .UnitPrice}}
Total: {{gbp .TotalPrice}}
{{end}}
SPECIAL INSTRUCTIONS:
- Please mark for direct dispatch to customer
- Include B&L Motorcycles branding if possible
- Send tracking information to: {{.Cfg.FromEmail}}
- Customer has already paid via our website

Please confirm receipt of this order and provide estimated dispatch time.

Best regards,
B&L Motorcycles Ltd
Company No: {{.Cfg.CompanyNo}}
Email: {{.Cfg.FromEmail}}
Phone: {{.Cfg.Phone}}

---
This is an automated message from the B&L Motorcycles ordering system.
`))

var confirmationTemplate = template.Must(template.New("confirmation").Funcs(templateFuncs).Parse(`Dear {{.Order.CustomerName}},

Thank you for your order with B&L Motorcycles!

ORDER CONFIRMATION:
Order Number: {{.Order.OrderID}}
Order Date: {{orderDate .Order}}
Total Amount: {{gbp .Order.TotalAmount}}

DELIVERY ADDRESS:
{{.Order.CustomerName}}
{{.Order.AddressLine1}}
{{if .Order.AddressLine2}}{{.Order.AddressLine2}}
{{end}}{{.Order.City}}
{{.Order.Postcode}}
{{.Order.Country}}

ITEMS ORDERED:
{{range .Order.Items}}
{{.ProductName}} (SKU: {{.ProductSKU}})
Quantity: {{.Quantity}}
Price: {{gbp .UnitPrice}} each
Subtotal: {{gbp .TotalPrice}}
{{end}}
WHAT HAPPENS NEXT:
1. Your order is being processed by our team
2. Items will be dispatched within 1-3 business days
3. You will receive tracking information via email
4. Delivery typically takes 2-5 business days

If you have any questions about your order, please contact us:
Email: {{.Cfg.FromEmail}}
Phone: {{.Cfg.Phone}}

Thank you for choosing B&L Motorcycles!

Best regards,
The B&L Motorcycles Team

---
B&L Motorcycles Ltd
Company No: {{.Cfg.CompanyNo}}
Website: {{.Cfg.WebsiteURL}}
`))

func (s *Service) render(tmpl *template.Template, order models.Order) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, emailData{Order: order, Cfg: s.cfg}); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

// SendSupplierOrder emails the order to the supplier for direct
// dispatch, CCing the shop for record keeping. Delivery failures are
// retried with backoff, then queued.
func (s *Service) SendSupplierOrder(ctx context.Context, order models.Order) error {
	body, err := s.render(supplierTemplate, order)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("New Order from B&L Motorcycles - %s", order.OrderID)

	return s.deliver(ctx, "supplier-order", retry.OpDropShipNotification, order, func() error {
		return s.sender.Send(s.cfg.SupplierEmail, s.cfg.FromEmail, subject, body)
	})
}

// SendOrderConfirmation emails the confirmation to the customer.
func (s *Service) SendOrderConfirmation(ctx context.Context, order models.Order) error {
	body, err := s.render(confirmationTemplate, order)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Order Confirmation - %s - B&L Motorcycles", order.OrderID)

	return s.deliver(ctx, "order-confirmation", retry.OpOrderConfirmation, order, func() error {
		return s.sender.Send(order.CustomerEmail, "", subject, body)
	})
}

func (s *Service) deliver(ctx context.Context, kind string, opType retry.OperationType, order models.Order, send func() error) error {
	policy := retry.EmailPolicy(errs.IsDelivery)
	_, err := retry.Do(ctx, policy, s.log, kind, func(context.Context) (struct{}, error) {
		return struct{}{}, send()
	})
	if err != nil {
		emailsSent.WithLabelValues(kind, "failure").Inc()
		s.queue.Enqueue(opType, mustMarshalOrder(order), err)
		return err
	}

	emailsSent.WithLabelValues(kind, "success").Inc()
	s.log.Info("order email delivered",
		zap.String("kind", kind),
		zap.String("order_id", order.OrderID))
	return nil
}

func mustMarshalOrder(order models.Order) []byte {
	payload, err := json.Marshal(order)
	if err != nil {
		// Order is a plain struct; marshalling cannot fail in practice.
		return nil
	}
	return payload
}

// SupplierOrderHandler drains queued supplier notifications.
func (s *Service) SupplierOrderHandler() retry.Handler {
	return s.queuedHandler(func(ctx context.Context, order models.Order) error {
		body, err := s.render(supplierTemplate, order)
		if err != nil {
			return err
		}
		subject := fmt.Sprintf("New Order from B&L Motorcycles - %s", order.OrderID)
		return s.sender.Send(s.cfg.SupplierEmail, s.cfg.FromEmail, subject, body)
	})
}

// ConfirmationHandler drains queued customer confirmations.
func (s *Service) ConfirmationHandler() retry.Handler {
	return s.queuedHandler(func(ctx context.Context, order models.Order) error {
		body, err := s.render(confirmationTemplate, order)
		if err != nil {
			return err
		}
		subject := fmt.Sprintf("Order Confirmation - %s - B&L Motorcycles", order.OrderID)
		return s.sender.Send(order.CustomerEmail, "", subject, body)
	})
}

func (s *Service) queuedHandler(send func(ctx context.Context, order models.Order) error) retry.Handler {
	return func(ctx context.Context, payload []byte) error {
		var order models.Order
		if err := json.Unmarshal(payload, &order); err != nil {
			return errs.NewParseError("failed to decode queued order payload", err)
		}
		return send(ctx, order)
	}
}
