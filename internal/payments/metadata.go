package payments

import (
	"encoding/json"
	"fmt"

	"github.com/jonnyallum/blmotorcyclesltd/internal/domain/models"
	"github.com/jonnyallum/blmotorcyclesltd/internal/errs"
)

// Checkout items ride through Stripe as a JSON array in the session
// metadata, so the webhook can rebuild the order lines without any
// state of its own.

// EncodeItems serializes checkout items for session metadata.
func EncodeItems(items []models.CheckoutItem) (string, error) {
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return "", fmt.Errorf("item %d: %w", i, err)
		}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode checkout items: %w", err)
	}
	return string(raw), nil
}

// DecodeItems parses the metadata value back into checkout items.
// Malformed payloads and invalid items come back as a ParseError.
func DecodeItems(raw string) ([]models.CheckoutItem, error) {
	if raw == "" {
		return nil, nil
	}

	var items []models.CheckoutItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, errs.NewParseError("malformed items metadata", err)
	}
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return nil, errs.NewParseError(fmt.Sprintf("invalid item %d in metadata", i), err)
		}
	}
	return items, nil
}
