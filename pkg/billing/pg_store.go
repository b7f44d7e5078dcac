package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	fpg "github.com/formforge/formforge/pkg/pg"
)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGStore is the Postgres-backed Store.
type PGStore struct {
	db pgQuerier
}

// NewPGStore creates a Store backed by the given connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{db: pool}
}

func (s *PGStore) Transact(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("billing: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(&PGStore{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("billing: commit tx: %w", err)
	}
	return nil
}

const subscriptionColumns = `id, tenant_id, plan_id, status, billing_cycle, amount,
	currency, gateway_subscription_id, customer_vault_id,
	current_period_start, current_period_end, canceled_at, cancel_reason,
	created_at, updated_at`

func (s *PGStore) Insert(ctx context.Context, sub *Subscription) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''),
			$10, $11, $12, NULLIF($13, ''), $14, $15)`,
		sub.ID, sub.TenantID, sub.PlanID, sub.Status, sub.Cycle, sub.Amount,
		sub.Currency, sub.GatewaySubID, sub.VaultID,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CanceledAt, sub.CancelReason,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("billing: insert subscription: %w", err)
	}
	return nil
}

func (s *PGStore) Update(ctx context.Context, sub *Subscription) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE subscriptions
		SET plan_id = $2, status = $3, billing_cycle = $4, amount = $5,
			gateway_subscription_id = NULLIF($6, ''), customer_vault_id = NULLIF($7, ''),
			current_period_start = $8, current_period_end = $9,
			canceled_at = $10, cancel_reason = NULLIF($11, ''), updated_at = $12
		WHERE id = $1`,
		sub.ID, sub.PlanID, sub.Status, sub.Cycle, sub.Amount,
		sub.GatewaySubID, sub.VaultID,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CanceledAt, sub.CancelReason, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("billing: update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (s *PGStore) Active(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE tenant_id = $1 AND status IN ($2, $3, $4)
		ORDER BY created_at DESC
		LIMIT 1`,
		tenantID, StatusActive, StatusTrialing, StatusPastDue)
	sub, err := scanSubscription(row)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil, ErrNoActiveSubscription
	}
	return sub, err
}

func (s *PGStore) LatestCanceled(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE tenant_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1`,
		tenantID, StatusCanceled)
	return scanSubscription(row)
}

func (s *PGStore) ByGatewaySubID(ctx context.Context, gatewaySubID string) (*Subscription, error) {
	if gatewaySubID == "" {
		return nil, ErrSubscriptionNotFound
	}
	row := s.db.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE gateway_subscription_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, gatewaySubID)
	return scanSubscription(row)
}

func (s *PGStore) CancelOpen(ctx context.Context, tenantID uuid.UUID, reason string) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE subscriptions
		SET status = $2, cancel_reason = $3, canceled_at = now(), updated_at = now()
		WHERE tenant_id = $1 AND status IN ($4, $5, $6)`,
		tenantID, StatusCanceled, reason, StatusActive, StatusTrialing, StatusPastDue)
	if err != nil {
		return 0, fmt.Errorf("billing: cancel open subscriptions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) History(ctx context.Context, tenantID uuid.UUID) ([]Subscription, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE tenant_id = $1
		ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("billing: query history: %w", err)
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("billing: iterate history: %w", err)
	}
	return out, nil
}

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var (
		sub          Subscription
		gatewaySubID *string
		vaultID      *string
		cancelReason *string
	)
	err := row.Scan(&sub.ID, &sub.TenantID, &sub.PlanID, &sub.Status, &sub.Cycle,
		&sub.Amount, &sub.Currency, &gatewaySubID, &vaultID,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CanceledAt, &cancelReason,
		&sub.CreatedAt, &sub.UpdatedAt)
	if fpg.IsNotFoundError(err) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("billing: scan subscription: %w", err)
	}
	if gatewaySubID != nil {
		sub.GatewaySubID = *gatewaySubID
	}
	if vaultID != nil {
		sub.VaultID = *vaultID
	}
	if cancelReason != nil {
		sub.CancelReason = *cancelReason
	}
	return &sub, nil
}
