package api

import (
	"context"
	"net/http"
	"time"

	"github.com/realestateinvestorceo/FirstPulse1.2/internal/engine"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/ledger"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service is the engine surface served over HTTP.
type Service interface {
	UpsertAccount(ctx context.Context, acct model.Account) error
	GetAccount(ctx context.Context, accountID string) (model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	IngestProperties(ctx context.Context, props []model.Property) error
	FilterEligible(ctx context.Context, accountID string, props []model.Property) ([]model.Property, error)
	RefreshScores(ctx context.Context, accountID string) error
	GenerateBatch(ctx context.Context, accountID string) (model.Batch, error)
	EstimateSkipTrace(ctx context.Context, accountID string) (ledger.Estimate, error)
	ExecuteBatch(ctx context.Context, accountID string, opts engine.ExecuteOptions) (engine.Execution, error)
	RedownloadBatch(ctx context.Context, accountID, batchID string) (engine.Execution, error)
	ListBatches(ctx context.Context, accountID string) ([]model.Batch, error)
	GetTracking(ctx context.Context, accountID string) ([]model.TrackingEntity, error)
	GetWallet(ctx context.Context, accountID string) (model.Wallet, error)
	CreditWallet(ctx context.Context, accountID string, amount decimal.Decimal) (model.Transaction, error)
	ApplyStatus(ctx context.Context, accountID, propertyID string, status model.TrackingStatus, reason string) error
	ApplySuppressionList(ctx context.Context, accountID string, list model.SuppressionList) (int, error)
}

// AccountRegistrar is told about saved accounts, e.g. to schedule their
// cycle day.
type AccountRegistrar interface {
	RegisterAccount(a model.Account) error
}

type handler struct {
	svc      Service
	registry AccountRegistrar
	log      *zap.Logger
}

// NewRouter mounts every route. registry may be nil.
func NewRouter(svc Service, registry AccountRegistrar, log *zap.Logger) http.Handler {
	h := &handler{svc: svc, registry: registry, log: log.Named("api")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/properties", h.ingestProperties)
		r.Get("/accounts", h.listAccounts)
		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Put("/", h.upsertAccount)
			r.Get("/", h.getAccount)
			r.Post("/eligible", h.filterEligible)
			r.Post("/refresh", h.refresh)
			r.Post("/batches", h.generate)
			r.Get("/batches", h.listBatches)
			r.Post("/batches/execute", h.execute)
			r.Post("/batches/{batchID}/download", h.redownload)
			r.Get("/skip-trace/estimate", h.estimate)
			r.Get("/tracking", h.tracking)
			r.Get("/wallet", h.wallet)
			r.Post("/wallet/credits", h.credit)
			r.Post("/statuses", h.applyStatus)
			r.Post("/suppressions", h.suppress)
		})
	})
	return r
}

func (h *handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func accountID(r *http.Request) string { return chi.URLParam(r, "accountID") }
