package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sync"

	"github.com/formforge/formforge/pkg/billing"
)

// Config is the webhook endpoint configuration.
type Config struct {
	// Secret is the shared HMAC key for signature verification. Empty
	// disables verification.
	Secret string `env:"WEBHOOK_SECRET"`
	// DedupeSize bounds how many recently seen transaction IDs are kept for
	// duplicate-delivery suppression.
	DedupeSize int `env:"WEBHOOK_DEDUPE_SIZE" envDefault:"4096"`
}

// SubscriptionEvents is the slice of the billing service the reconciler
// drives. *billing.Service satisfies it.
type SubscriptionEvents interface {
	ProcessRenewal(ctx context.Context, gatewaySubID string) (*billing.Subscription, error)
	HandlePaymentFailure(ctx context.Context, gatewaySubID string) (*billing.Subscription, error)
	CancelByGateway(ctx context.Context, gatewaySubID string) (*billing.Subscription, error)
}

// orderIDPattern extracts the tenant ID from order IDs the billing service
// issues for one-time payments.
var orderIDPattern = regexp.MustCompile(`^tenant-([0-9a-fA-F-]{36})-`)

// Handler is the webhook HTTP endpoint. Mount it unauthenticated (the
// signature is the authentication) and outside tenant resolution.
type Handler struct {
	secret string
	events SubscriptionEvents
	log    *slog.Logger
	seen   *seenSet
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// NewHandler creates the webhook endpoint.
func NewHandler(cfg Config, events SubscriptionEvents, opts ...HandlerOption) *Handler {
	size := cfg.DedupeSize
	if size <= 0 {
		size = 4096
	}
	h := &Handler{
		secret: cfg.Secret,
		events: events,
		log:    slog.Default(),
		seen:   newSeenSet(size),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.log.ErrorContext(ctx, "webhook body read failed", "error", err)
		http.Error(w, "Error processing webhook", http.StatusInternalServerError)
		return
	}

	if !VerifySignature(h.secret, body, r.Header.Get(SignatureHeader)) {
		h.log.WarnContext(ctx, "webhook signature verification failed")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	event, err := ParseEvent(r.Header.Get("Content-Type"), body)
	if err != nil {
		// A malformed body will never parse on retry either; ack it.
		h.log.WarnContext(ctx, "webhook body unparseable", "error", err)
		h.ok(w)
		return
	}

	if event.TransactionID != "" && h.seen.contains(event.TransactionID) {
		h.log.InfoContext(ctx, "duplicate webhook delivery ignored",
			"event_type", event.Type, "transaction_id", event.TransactionID)
		h.ok(w)
		return
	}

	if err := h.dispatch(ctx, event); err != nil {
		h.log.ErrorContext(ctx, "webhook processing failed",
			"event_type", event.Type, "error", err)
		http.Error(w, "Error processing webhook", http.StatusInternalServerError)
		return
	}

	if event.TransactionID != "" {
		h.seen.add(event.TransactionID)
	}
	h.ok(w)
}

func (h *Handler) ok(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) dispatch(ctx context.Context, event *Event) error {
	switch event.Type {
	case "recurring.success", "subscription.charge.success":
		return h.reconcile(ctx, event, h.events.ProcessRenewal)

	case "recurring.failure", "subscription.charge.failure":
		return h.reconcile(ctx, event, h.events.HandlePaymentFailure)

	case "recurring.cancelled", "subscription.cancelled":
		return h.reconcile(ctx, event, h.events.CancelByGateway)

	case "transaction.sale.success":
		attrs := []any{
			"transaction_id", event.TransactionID,
			"order_id", event.OrderID,
			"amount", event.Amount,
		}
		if m := orderIDPattern.FindStringSubmatch(event.OrderID); m != nil {
			attrs = append(attrs, "tenant_id", m[1])
		}
		h.log.InfoContext(ctx, "transaction succeeded", attrs...)
		return nil

	case "transaction.sale.failure":
		h.log.WarnContext(ctx, "transaction failed",
			"transaction_id", event.TransactionID,
			"response_code", event.ResponseCode,
			"response_text", event.ResponseText)
		return nil

	case "customer_vault.create.success":
		h.log.InfoContext(ctx, "customer vault created",
			"vault_id", event.CustomerVaultID)
		return nil

	case "customer_vault.update.success":
		h.log.InfoContext(ctx, "customer vault updated",
			"vault_id", event.CustomerVaultID)
		return nil

	case "":
		h.log.WarnContext(ctx, "webhook delivery without event type")
		return nil

	default:
		h.log.InfoContext(ctx, "unhandled webhook event", "event_type", event.Type)
		return nil
	}
}

// reconcile runs a billing transition keyed by the gateway subscription ID.
// Deliveries without one, or for subscriptions this environment has never
// seen, are logged and acknowledged.
func (h *Handler) reconcile(ctx context.Context, event *Event, fn func(context.Context, string) (*billing.Subscription, error)) error {
	if event.SubscriptionID == "" {
		h.log.WarnContext(ctx, "subscription event without subscription_id",
			"event_type", event.Type)
		return nil
	}

	sub, err := fn(ctx, event.SubscriptionID)
	if errors.Is(err, billing.ErrSubscriptionNotFound) {
		h.log.WarnContext(ctx, "webhook for unknown subscription",
			"event_type", event.Type,
			"gateway_subscription_id", event.SubscriptionID)
		return nil
	}
	if err != nil {
		return err
	}

	h.log.InfoContext(ctx, "subscription reconciled",
		"event_type", event.Type,
		"tenant_id", sub.TenantID,
		"status", sub.Status)
	return nil
}

// seenSet is a fixed-capacity set of recently seen IDs. When full, the
// oldest entry is evicted.
type seenSet struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
	next  int
}

func newSeenSet(capacity int) *seenSet {
	return &seenSet{
		ids:   make(map[string]struct{}, capacity),
		order: make([]string, capacity),
	}
}

func (s *seenSet) contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *seenSet) add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return
	}
	if old := s.order[s.next]; old != "" {
		delete(s.ids, old)
	}
	s.order[s.next] = id
	s.next = (s.next + 1) % len(s.order)
	s.ids[id] = struct{}{}
}
