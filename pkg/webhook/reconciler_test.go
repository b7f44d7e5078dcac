package webhook_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formforge/formforge/pkg/billing"
	"github.com/formforge/formforge/pkg/webhook"
)

// recordingEvents records which billing transitions fired.
type recordingEvents struct {
	known    string
	err      error
	renewals []string
	failures []string
	cancels  []string
}

func (e *recordingEvents) lookup(gatewaySubID string) (*billing.Subscription, error) {
	if e.err != nil {
		return nil, e.err
	}
	if gatewaySubID != e.known {
		return nil, billing.ErrSubscriptionNotFound
	}
	return &billing.Subscription{TenantID: uuid.New(), Status: billing.StatusActive}, nil
}

func (e *recordingEvents) ProcessRenewal(_ context.Context, id string) (*billing.Subscription, error) {
	sub, err := e.lookup(id)
	if err == nil {
		e.renewals = append(e.renewals, id)
	}
	return sub, err
}

func (e *recordingEvents) HandlePaymentFailure(_ context.Context, id string) (*billing.Subscription, error) {
	sub, err := e.lookup(id)
	if err == nil {
		e.failures = append(e.failures, id)
	}
	return sub, err
}

func (e *recordingEvents) CancelByGateway(_ context.Context, id string) (*billing.Subscription, error) {
	sub, err := e.lookup(id)
	if err == nil {
		e.cancels = append(e.cancels, id)
	}
	return sub, err
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func deliver(h http.Handler, contentType, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	if signature != "" {
		req.Header.Set(webhook.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	body := []byte(`{"event_type":"recurring.success"}`)

	t.Run("valid signature", func(t *testing.T) {
		t.Parallel()
		assert.True(t, webhook.VerifySignature("s3cret", body, sign("s3cret", string(body))))
	})

	t.Run("wrong signature", func(t *testing.T) {
		t.Parallel()
		assert.False(t, webhook.VerifySignature("s3cret", body, sign("other", string(body))))
	})

	t.Run("missing signature", func(t *testing.T) {
		t.Parallel()
		assert.False(t, webhook.VerifySignature("s3cret", body, ""))
	})

	t.Run("empty secret skips verification", func(t *testing.T) {
		t.Parallel()
		assert.True(t, webhook.VerifySignature("", body, ""))
	})
}

func TestParseEvent(t *testing.T) {
	t.Parallel()

	t.Run("json body", func(t *testing.T) {
		t.Parallel()

		event, err := webhook.ParseEvent("application/json",
			[]byte(`{"event_type":"recurring.success","subscription_id":"sub-1","amount":19.00}`))
		require.NoError(t, err)
		assert.Equal(t, "recurring.success", event.Type)
		assert.Equal(t, "sub-1", event.SubscriptionID)
		assert.Equal(t, "19", event.Amount)
	})

	t.Run("form body", func(t *testing.T) {
		t.Parallel()

		event, err := webhook.ParseEvent("application/x-www-form-urlencoded",
			[]byte("event_type=transaction.sale.success&transaction_id=9001&order_id=tenant-x-1"))
		require.NoError(t, err)
		assert.Equal(t, "transaction.sale.success", event.Type)
		assert.Equal(t, "9001", event.TransactionID)
	})

	t.Run("legacy action field", func(t *testing.T) {
		t.Parallel()

		event, err := webhook.ParseEvent("application/x-www-form-urlencoded",
			[]byte("action=recurring.failure&subscription_id=sub-1"))
		require.NoError(t, err)
		assert.Equal(t, "recurring.failure", event.Type)
	})

	t.Run("event_type wins over action", func(t *testing.T) {
		t.Parallel()

		event, err := webhook.ParseEvent("",
			[]byte("event_type=recurring.success&action=recurring.failure"))
		require.NoError(t, err)
		assert.Equal(t, "recurring.success", event.Type)
	})

	t.Run("json detected without content type", func(t *testing.T) {
		t.Parallel()

		event, err := webhook.ParseEvent("", []byte(`{"event_type":"subscription.cancelled"}`))
		require.NoError(t, err)
		assert.Equal(t, "subscription.cancelled", event.Type)
	})
}

func TestHandler(t *testing.T) {
	t.Parallel()

	t.Run("renewal event drives billing", func(t *testing.T) {
		t.Parallel()

		events := &recordingEvents{known: "sub-1"}
		h := webhook.NewHandler(webhook.Config{}, events)

		rec := deliver(h, "application/json",
			`{"event_type":"recurring.success","subscription_id":"sub-1","transaction_id":"txn-1"}`, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
		assert.Equal(t, []string{"sub-1"}, events.renewals)
	})

	t.Run("every subscription event alias dispatches", func(t *testing.T) {
		t.Parallel()

		events := &recordingEvents{known: "sub-1"}
		h := webhook.NewHandler(webhook.Config{}, events)

		for _, eventType := range []string{"recurring.success", "subscription.charge.success"} {
			rec := deliver(h, "application/x-www-form-urlencoded",
				"event_type="+eventType+"&subscription_id=sub-1", "")
			assert.Equal(t, http.StatusOK, rec.Code)
		}
		for _, eventType := range []string{"recurring.failure", "subscription.charge.failure"} {
			rec := deliver(h, "application/x-www-form-urlencoded",
				"event_type="+eventType+"&subscription_id=sub-1", "")
			assert.Equal(t, http.StatusOK, rec.Code)
		}
		for _, eventType := range []string{"recurring.cancelled", "subscription.cancelled"} {
			rec := deliver(h, "application/x-www-form-urlencoded",
				"event_type="+eventType+"&subscription_id=sub-1", "")
			assert.Equal(t, http.StatusOK, rec.Code)
		}

		assert.Len(t, events.renewals, 2)
		assert.Len(t, events.failures, 2)
		assert.Len(t, events.cancels, 2)
	})

	t.Run("bad signature gets 401 and no processing", func(t *testing.T) {
		t.Parallel()

		events := &recordingEvents{known: "sub-1"}
		h := webhook.NewHandler(webhook.Config{Secret: "s3cret"}, events)

		body := `{"event_type":"recurring.success","subscription_id":"sub-1"}`
		rec := deliver(h, "application/json", body, "deadbeef")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, events.renewals)

		rec = deliver(h, "application/json", body, sign("s3cret", body))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"sub-1"}, events.renewals)
	})

	t.Run("duplicate delivery is processed once", func(t *testing.T) {
		t.Parallel()

		events := &recordingEvents{known: "sub-1"}
		h := webhook.NewHandler(webhook.Config{}, events)

		body := `{"event_type":"recurring.success","subscription_id":"sub-1","transaction_id":"txn-7"}`
		for i := 0; i < 3; i++ {
			rec := deliver(h, "application/json", body, "")
			assert.Equal(t, http.StatusOK, rec.Code)
		}
		assert.Equal(t, []string{"sub-1"}, events.renewals)
	})

	t.Run("unknown subscription is acknowledged", func(t *testing.T) {
		t.Parallel()

		events := &recordingEvents{known: "sub-1"}
		h := webhook.NewHandler(webhook.Config{}, events)

		rec := deliver(h, "application/json",
			`{"event_type":"recurring.success","subscription_id":"sub-ghost"}`, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, events.renewals)
	})

	t.Run("internal failure gets 500", func(t *testing.T) {
		t.Parallel()

		events := &recordingEvents{known: "sub-1", err: assert.AnError}
		h := webhook.NewHandler(webhook.Config{}, events)

		rec := deliver(h, "application/json",
			`{"event_type":"recurring.success","subscription_id":"sub-1","transaction_id":"txn-9"}`, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		// The delivery was not marked seen: the gateway's retry must get
		// another chance.
		events.err = nil
		rec = deliver(h, "application/json",
			`{"event_type":"recurring.success","subscription_id":"sub-1","transaction_id":"txn-9"}`, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"sub-1"}, events.renewals)
	})

	t.Run("unknown event type is acknowledged", func(t *testing.T) {
		t.Parallel()

		h := webhook.NewHandler(webhook.Config{}, &recordingEvents{})
		rec := deliver(h, "application/json", `{"event_type":"settlement.batch.complete"}`, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("informational events are acknowledged", func(t *testing.T) {
		t.Parallel()

		h := webhook.NewHandler(webhook.Config{}, &recordingEvents{})
		tenantID := uuid.New()

		for _, body := range []string{
			"event_type=transaction.sale.success&transaction_id=9001&order_id=tenant-" + tenantID.String() + "-1700000000",
			"event_type=transaction.sale.failure&transaction_id=9002&response_code=200",
			"event_type=customer_vault.create.success&customer_vault_id=vault-1",
			"event_type=customer_vault.update.success&customer_vault_id=vault-1",
		} {
			rec := deliver(h, "application/x-www-form-urlencoded", body, "")
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("unparseable body is acknowledged", func(t *testing.T) {
		t.Parallel()

		h := webhook.NewHandler(webhook.Config{}, &recordingEvents{})
		rec := deliver(h, "application/json", `{not json`, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing event type is acknowledged", func(t *testing.T) {
		t.Parallel()

		h := webhook.NewHandler(webhook.Config{}, &recordingEvents{})
		rec := deliver(h, "application/x-www-form-urlencoded", "transaction_id=9001", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
