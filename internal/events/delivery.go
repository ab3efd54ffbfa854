package events

import (
	"bytes"
	"encoding/json"

	"arena-indexer/internal/apperrors"
)

// Delivery is one webhook notification describing a single ledger
// transaction.
type Delivery struct {
	Type        string          `json:"type"`
	Signature   string          `json:"signature"`
	Transaction json.RawMessage `json:"transaction"`
}

// Kind returns the parsed event kind of the delivery.
func (d *Delivery) Kind() Kind {
	return ParseKind(d.Type)
}

// ParseDelivery decodes a raw webhook body. The signature is an opaque,
// non-empty identifier; ledger format is not required.
func ParseDelivery(body []byte) (*Delivery, error) {
	var d Delivery
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, apperrors.Validation("Invalid JSON body: %v", err)
	}
	if d.Type == "" || d.Signature == "" {
		return nil, apperrors.Validation("Missing required fields: signature, type")
	}
	return &d, nil
}

// Payload is an event body that can check its own required fields.
type Payload interface {
	Validate() error
}

// Decode unmarshals raw into p and validates it. An absent transaction object
// decodes as empty so the required-field check reports it.
func Decode(raw json.RawMessage, p Payload) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, p); err != nil {
			return apperrors.Validation("Malformed transaction payload: %v", err)
		}
	}
	return p.Validate()
}
