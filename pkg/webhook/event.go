package webhook

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Event is a normalized gateway notification. The gateway delivers either a
// JSON object or a form-encoded body; both flatten into the same shape here.
type Event struct {
	// Type is the event_type field, falling back to the legacy action field
	// older gateway accounts still send.
	Type            string
	SubscriptionID  string
	TransactionID   string
	OrderID         string
	Amount          string
	ResponseText    string
	ResponseCode    string
	CustomerVaultID string
	// Raw holds every field of the delivery.
	Raw map[string]string
}

// ParseEvent decodes a webhook delivery body. JSON is detected by content
// type or a leading brace; everything else parses as a form body.
func ParseEvent(contentType string, body []byte) (*Event, error) {
	fields, err := parseFields(contentType, body)
	if err != nil {
		return nil, err
	}

	eventType := fields["event_type"]
	if eventType == "" {
		eventType = fields["action"]
	}

	return &Event{
		Type:            eventType,
		SubscriptionID:  fields["subscription_id"],
		TransactionID:   fields["transaction_id"],
		OrderID:         fields["order_id"],
		Amount:          fields["amount"],
		ResponseText:    fields["response_text"],
		ResponseCode:    fields["response_code"],
		CustomerVaultID: fields["customer_vault_id"],
		Raw:             fields,
	}, nil
}

func parseFields(contentType string, body []byte) (map[string]string, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.Contains(contentType, "application/json") || strings.HasPrefix(trimmed, "{") {
		var raw map[string]any
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("webhook: parse json body: %w", err)
		}
		fields := make(map[string]string, len(raw))
		for key, val := range raw {
			switch v := val.(type) {
			case string:
				fields[key] = v
			case float64, bool:
				fields[key] = fmt.Sprint(v)
			case nil:
			default:
				// Nested objects are kept as their JSON text.
				b, _ := json.Marshal(v)
				fields[key] = string(b)
			}
		}
		return fields, nil
	}

	values, err := url.ParseQuery(trimmed)
	if err != nil {
		return nil, fmt.Errorf("webhook: parse form body: %w", err)
	}
	fields := make(map[string]string, len(values))
	for key := range values {
		fields[key] = values.Get(key)
	}
	return fields, nil
}
