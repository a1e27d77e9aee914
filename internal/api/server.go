// Package api exposes the settlement engine over HTTP. Reads are public;
// every mutating route requires an ed25519-signed request whose signer is
// the caller of the engine operation.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/observability"
	"pat-settlement/internal/settlement"
)

// Options configures a Server.
type Options struct {
	SignatureWindow time.Duration
	IdempotencyTTL  time.Duration
	MaxBodyBytes    int64
	Idempotency     IdempotencyStore // nil uses an in-memory store
	Stream          http.Handler     // nil disables /v1/events/ws
	GenesisOperator domain.Address   // zero disables /v1/genesis
	Metrics         http.Handler     // nil uses the default registry
	Logger          *slog.Logger
	Clock           func() time.Time
}

// Server routes HTTP requests to the engine.
type Server struct {
	engine     *settlement.Engine
	opts       Options
	logger     *slog.Logger
	signatures *signatureCache

	keyMu    sync.Mutex
	keyLocks map[string]*keyLock
}

// New creates a server, filling unset options with defaults.
func New(engine *settlement.Engine, opts Options) *Server {
	if opts.SignatureWindow <= 0 {
		opts.SignatureWindow = 5 * time.Minute
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Idempotency == nil {
		opts.Idempotency = NewMemoryIdempotencyStore(opts.Clock)
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.Handler()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		engine:     engine,
		opts:       opts,
		logger:     opts.Logger.With("component", "api"),
		signatures: newSignatureCache(opts.SignatureWindow),
		keyLocks:   make(map[string]*keyLock),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/health", s.health)
	r.Get("/status", s.status)
	r.Method(http.MethodGet, "/metrics", s.opts.Metrics)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/config", s.getConfig)
		v1.Get("/split", s.getSplit)

		v1.Get("/segments", s.listSegments)
		v1.Get("/segments/{id}", s.getSegment)
		v1.Get("/segments/{id}/access/{consumer}", s.getAccess)
		v1.Get("/earnings/{address}", s.getEarnings)

		v1.Get("/token", s.getToken)
		v1.Get("/token/supply", s.getSupply)
		v1.Get("/token/balances/{address}", s.getBalance)
		v1.Get("/token/allowances/{owner}/{spender}", s.getAllowance)
		v1.Get("/token/distribution", s.getDistribution)
		v1.Get("/token/vesting", s.getVesting)

		v1.Get("/events", s.listEvents)
		if s.opts.Stream != nil {
			v1.Method(http.MethodGet, "/events/ws", s.opts.Stream)
		}

		v1.Group(func(signed chi.Router) {
			signed.Use(s.authenticate)
			signed.Use(s.idempotent)

			if !s.opts.GenesisOperator.IsZero() {
				signed.Post("/genesis", s.genesis)
			}

			signed.Post("/segments", s.createSegment)
			signed.Post("/segments/buy", s.buySegments)
			signed.Post("/segments/{id}/price", s.updatePrice)
			signed.Post("/segments/{id}/deactivate", s.deactivateSegment)
			signed.Post("/segments/{id}/buy", s.buySegment)
			signed.Post("/earnings/withdraw", s.withdraw)

			signed.Post("/token/transfer", s.transfer)
			signed.Post("/token/transfer-from", s.transferFrom)
			signed.Post("/token/approve", s.approve)
			signed.Post("/token/burn", s.burn)
			signed.Post("/token/distribute", s.distribute)
			signed.Post("/token/release", s.release)

			signed.Route("/admin", func(admin chi.Router) {
				admin.Post("/spread", s.setSpread)
				admin.Post("/broker-wallet", s.setBrokerWallet)
				admin.Post("/broker-pool", s.setBrokerPool)
				admin.Post("/operator", s.setOperator)
				admin.Post("/phase/advance", s.advancePhase)
				admin.Post("/pause", s.setPaused)
				admin.Post("/implementation", s.swapImplementation)
				admin.Post("/config", s.updateConfig)
			})
		})
	})
	return r
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestID reuses a client-supplied X-Request-ID or assigns one.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// instrument records request counts and latency by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.RecordHTTPRequest(route, r.Method, strconv.Itoa(status), time.Since(start).Seconds())
		s.logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"request_id", requestIDFrom(r.Context()),
			"duration", time.Since(start))
	})
}
