package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"klendrisk/native/lending"
	"klendrisk/observability"
	"klendrisk/observability/logging"
	"klendrisk/observability/metrics"
	"klendrisk/services/riskd/middleware"
	"klendrisk/services/riskd/registry"
	"klendrisk/services/riskd/storage"
)

const (
	defaultMaxSnapshotBytes = 32 << 20
	defaultWriteScope       = "snapshots:write"

	limitQueries   = "queries"
	limitSnapshots = "snapshots"
)

// Options wires the server to its collaborators. Store may be nil, in which
// case snapshots are not persisted and history is unavailable.
type Options struct {
	Engine *lending.Engine
	// EngineConfig, when set, replaces the config block of every ingested
	// snapshot.
	EngineConfig     *lending.Config
	Registry         *registry.Registry
	Store            *storage.Store
	Logger           *slog.Logger
	Observability    *middleware.Observability
	Auth             *middleware.Authenticator
	Limiter          *middleware.RateLimiter
	WriteScope       string
	CORSOrigins      []string
	MaxSnapshotBytes int64
}

// Server exposes the risk engine over HTTP.
type Server struct {
	engine     *lending.Engine
	engineCfg  *lending.Config
	registry   *registry.Registry
	store      *storage.Store
	logger     *slog.Logger
	obs        *middleware.Observability
	auth       *middleware.Authenticator
	limiter    *middleware.RateLimiter
	writeScope string
	origins    []string
	maxBody    int64
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = registry.New()
	}
	engine := opts.Engine
	if engine == nil {
		engine = lending.NewEngine()
		engine.SetObserver(observability.Engine())
	}
	engine.SetState(reg)
	obs := opts.Observability
	if obs == nil {
		obs = middleware.NewObservability(middleware.ObservabilityConfig{}, logger)
	}
	auth := opts.Auth
	if auth == nil {
		auth = middleware.NewAuthenticator(middleware.AuthConfig{}, logger)
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(nil)
	}
	scope := opts.WriteScope
	if scope == "" {
		scope = defaultWriteScope
	}
	maxBody := opts.MaxSnapshotBytes
	if maxBody <= 0 {
		maxBody = defaultMaxSnapshotBytes
	}
	return &Server{
		engine:     engine,
		engineCfg:  opts.EngineConfig,
		registry:   reg,
		store:      opts.Store,
		logger:     logger.With(slog.String("component", "http")),
		obs:        obs,
		auth:       auth,
		limiter:    limiter,
		writeScope: scope,
		origins:    opts.CORSOrigins,
		maxBody:    maxBody,
	}
}

// Registry returns the registry backing the engine.
func (s *Server) Registry() *registry.Registry { return s.registry }

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(s.origins))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.obs.MetricsHandler())

	r.Route("/v1/markets", func(r chi.Router) {
		r.With(s.route("markets.list", limitQueries)...).Get("/", s.handleListMarkets)
		r.Route("/{market}", func(r chi.Router) {
			r.With(append(s.route("snapshot.put", limitSnapshots), s.auth.Middleware(s.writeScope))...).
				Put("/snapshot", s.handlePutSnapshot)
			r.With(s.route("market.groups", limitQueries)...).Get("/elevation-groups", s.handleMarketGroups)
			r.With(s.route("reserve.get", limitQueries)...).Get("/reserves/{reserve}", s.handleReserve)
			r.With(s.route("reserve.caps", limitQueries)...).Get("/reserves/{reserve}/caps", s.handleReserveCaps)
			r.Route("/obligations/{obligation}", func(r chi.Router) {
				r.With(s.route("obligation.get", limitQueries)...).Get("/", s.handleObligation)
				r.With(s.route("obligation.history", limitQueries)...).Get("/history", s.handleHistory)
				r.With(s.route("obligation.simulate", limitQueries)...).Post("/simulate", s.handleSimulate)
				r.With(s.route("obligation.borrow_power", limitQueries)...).Get("/borrow-power", s.handleBorrowPower)
				r.With(s.route("obligation.max_borrow", limitQueries)...).Get("/max-borrow", s.handleMaxBorrow)
				r.With(s.route("obligation.max_withdraw", limitQueries)...).Get("/max-withdraw", s.handleMaxWithdraw)
				r.With(s.route("obligation.groups", limitQueries)...).Get("/elevation-groups", s.handleObligationGroups)
				r.With(s.route("obligation.eligibility", limitQueries)...).Get("/eligibility", s.handleEligibility)
			})
		})
	})
	return r
}

func (s *Server) route(name, limit string) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		s.obs.Middleware(name),
		s.limiter.Middleware(limit),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"markets": len(s.registry.List()),
	})
}

func (s *Server) logError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	attrs = append(attrs,
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.RequestIDFrom(ctx)),
	)
	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

func ownerAttr(owner lending.Address) slog.Attr {
	return slog.String("owner", logging.MaskAddress(owner.String()))
}

// refreshMetrics republishes the gauges for a loaded market.
func refreshMetrics(entry *registry.Entry) {
	observability.Snapshots().SetLoaded(entry.Market.Address().String(), entry.Slot, len(entry.Market.Reserves()))
	metrics.Reserves().RecordMarket(entry.Market, entry.Slot)
}
