package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/formforge/formforge/pkg/billing"
	"github.com/formforge/formforge/pkg/config"
	"github.com/formforge/formforge/pkg/gateway"
	"github.com/formforge/formforge/pkg/httpserver"
	"github.com/formforge/formforge/pkg/logger"
	"github.com/formforge/formforge/pkg/pg"
	"github.com/formforge/formforge/pkg/plan"
	"github.com/formforge/formforge/pkg/redis"
	"github.com/formforge/formforge/pkg/tenant"
	"github.com/formforge/formforge/pkg/webhook"
)

type appConfig struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	// PlansFile points at a YAML plan catalog; empty uses the built-in one.
	PlansFile string `env:"PLANS_FILE"`
}

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var appCfg appConfig
	if err := config.Load(&appCfg); err != nil {
		return err
	}

	log := logger.New(
		logger.WithLevel(parseLevel(appCfg.LogLevel)),
		logger.WithFormat(logger.Format(appCfg.LogFormat)),
		logger.WithContextExtractors(tenant.LogExtractor()),
	)
	logger.SetAsDefault(log)

	var (
		tenantCfg  tenant.Config
		gwCfg      gateway.Config
		webhookCfg webhook.Config
		httpCfg    httpserver.Config
	)
	if err := config.Load(&tenantCfg); err != nil {
		return err
	}
	if err := config.Load(&gwCfg); err != nil {
		return err
	}
	if err := config.Load(&webhookCfg); err != nil {
		return err
	}
	if err := config.Load(&httpCfg); err != nil {
		return err
	}

	catalog := plan.DefaultCatalog()
	if appCfg.PlansFile != "" {
		loaded, err := plan.LoadFile(appCfg.PlansFile)
		if err != nil {
			return err
		}
		catalog = loaded
	}
	registry, err := plan.NewRegistry(catalog)
	if err != nil {
		return err
	}

	var (
		tenantStore  tenant.Store
		billingStore billing.Store
		dirOpts      []tenant.DirectoryOption
		health       []func(context.Context) error
	)

	if os.Getenv("DATABASE_URL") != "" {
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := pg.Migrate(ctx, pool, pgCfg, nil, log); err != nil {
			return err
		}
		tenantStore = tenant.NewPGStore(pool)
		billingStore = billing.NewPGStore(pool)
		health = append(health, pg.Healthcheck(pool))
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		tenantStore = tenant.NewMemoryStore()
		billingStore = billing.NewMemoryStore()
	}

	if os.Getenv("REDIS_URL") != "" {
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return err
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer client.Close()

		dirOpts = append(dirOpts, tenant.WithCache(tenant.NewRedisCache(client, "tenant")))
		health = append(health, redis.Healthcheck(client))
	}

	dirOpts = append(dirOpts, tenant.WithTTL(tenantCfg.CacheTTL))
	dir := tenant.NewDirectory(tenantStore, dirOpts...)
	defer dir.Close()

	resolver := tenant.NewResolver(dir, tenantCfg)

	// The tenant service consults billing for plan limits and delete
	// cascades, while billing activates tenants through hooks. The closures
	// capture billingSvc before it is assigned; they only run per request,
	// well after construction completes.
	var billingSvc *billing.Service
	tenantSvc := tenant.NewService(tenantStore, dir, registry, tenantCfg,
		tenant.WithLogger(log),
		tenant.WithPlanResolver(func(ctx context.Context, tenantID uuid.UUID) string {
			return activePlanID(ctx, billingSvc, tenantID)
		}),
		tenant.WithCascade(func(ctx context.Context, tenantID uuid.UUID) error {
			return cancelBillingOnDelete(ctx, billingSvc, tenantID)
		}))

	gw, err := gateway.New(gwCfg, gateway.WithLogger(log))
	if err != nil {
		return err
	}
	billingSvc = billing.NewService(billingStore, gw, registry,
		&tenantHooks{store: tenantStore, svc: tenantSvc},
		billing.WithLogger(log))

	router := chi.NewRouter()
	router.Use(chimw.RealIP, chimw.Recoverer)

	router.Method(http.MethodGet, "/healthz", httpserver.HealthHandler(log, health...))
	router.Method(http.MethodPost, "/webhooks/gateway",
		webhook.NewHandler(webhookCfg, billingSvc, webhook.WithLogger(log)))

	router.Group(func(r chi.Router) {
		r.Use(tenant.Middleware(resolver,
			tenant.WithSkipPaths("/healthz", "/webhooks/"),
			tenant.WithMiddlewareLogger(log)))
		r.Use(tenant.RequireTenant)

		r.Get("/api/tenant", currentTenantHandler)
		r.Get("/api/tenant/stats", tenantStatsHandler(tenantSvc))
		r.Get("/api/tenant/subscription", subscriptionHandler(billingSvc))
	})

	return httpserver.Run(ctx, httpCfg, router, log)
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// activePlanID resolves the plan governing a tenant's limits from its open
// subscription. No subscription means the free plan.
func activePlanID(ctx context.Context, b *billing.Service, tenantID uuid.UUID) string {
	sub, err := b.ActiveSubscription(ctx, tenantID)
	if err != nil {
		return ""
	}
	return sub.PlanID
}

// cancelBillingOnDelete is the tenant-delete cascade: the open subscription
// is cancelled (including its gateway schedule) before the tenant row goes.
func cancelBillingOnDelete(ctx context.Context, b *billing.Service, tenantID uuid.UUID) error {
	_, err := b.Cancel(ctx, tenantID, "tenant deleted")
	if errors.Is(err, billing.ErrNoActiveSubscription) {
		return nil
	}
	return err
}

// tenantHooks adapts the tenant service to billing's callback surface.
type tenantHooks struct {
	store tenant.Store
	svc   *tenant.Service
}

func (h *tenantHooks) byID(ctx context.Context, tenantID uuid.UUID) (*tenant.Tenant, error) {
	return h.store.FindByKey(ctx, tenant.KeyID, tenantID.String())
}

func (h *tenantHooks) Activate(ctx context.Context, tenantID uuid.UUID) error {
	t, err := h.byID(ctx, tenantID)
	if err != nil {
		return err
	}
	return h.svc.Activate(ctx, t)
}

func (h *tenantHooks) SetVaultRef(ctx context.Context, tenantID uuid.UUID, vaultRef string) error {
	t, err := h.byID(ctx, tenantID)
	if err != nil {
		return err
	}
	return h.svc.SetVaultRef(ctx, t, vaultRef)
}

func (h *tenantHooks) VaultRef(ctx context.Context, tenantID uuid.UUID) (string, error) {
	t, err := h.byID(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return t.VaultRef, nil
}

func currentTenantHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, tenant.MustFromContext(r.Context()))
}

func tenantStatsHandler(svc *tenant.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context(), tenant.MustFromContext(r.Context()))
		if err != nil {
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, stats)
	}
}

func subscriptionHandler(svc *billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := tenant.MustFromContext(r.Context())
		sub, err := svc.ActiveSubscription(r.Context(), t.ID)
		if err != nil {
			http.Error(w, "no active subscription", http.StatusNotFound)
			return
		}
		writeJSON(w, sub)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
