package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/Togather-Foundation/gatherings/internal/api/handlers"
	"github.com/Togather-Foundation/gatherings/internal/api/middleware"
	"github.com/Togather-Foundation/gatherings/internal/api/problem"
	"github.com/Togather-Foundation/gatherings/internal/audit"
	"github.com/Togather-Foundation/gatherings/internal/auth"
	"github.com/Togather-Foundation/gatherings/internal/config"
	"github.com/Togather-Foundation/gatherings/internal/domain/events"
	"github.com/Togather-Foundation/gatherings/internal/domain/reviews"
	"github.com/Togather-Foundation/gatherings/internal/domain/rsvps"
	"github.com/Togather-Foundation/gatherings/internal/domain/users"
	"github.com/Togather-Foundation/gatherings/internal/metrics"
	"github.com/Togather-Foundation/gatherings/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Router is the assembled HTTP handler plus the background work it owns.
type Router struct {
	Handler     http.Handler
	RateLimiter *middleware.RateLimiter
}

// Close stops the rate limiter cleanup loop.
func (r *Router) Close() {
	if r.RateLimiter != nil {
		r.RateLimiter.Stop()
	}
}

func NewRouter(cfg config.Config, logger zerolog.Logger, repo storage.Repository, build BuildInfo) *Router {
	env := cfg.Environment
	auditLogger := audit.NewLoggerWithZerolog(logger)
	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessExpiry, cfg.Auth.RefreshExpiry, cfg.Auth.JWTIssuer)

	eventService := events.NewService(repo.Events(), repo.RSVPs())
	rsvpService := rsvps.NewService(repo.RSVPs(), repo.Events())
	reviewService := reviews.NewService(repo.Reviews(), eventService)
	userService := users.NewService(repo.Users(), auditLogger, logger)

	eventsHandler := handlers.NewEventsHandler(eventService, rsvpService, reviewService, auditLogger, env, cfg.Server.BaseURL)
	rsvpsHandler := handlers.NewRSVPsHandler(rsvpService, auditLogger, env, cfg.Server.BaseURL)
	reviewsHandler := handlers.NewReviewsHandler(reviewService, auditLogger, env, cfg.Server.BaseURL)
	authHandler := handlers.NewAuthHandler(userService, tokens, auditLogger, env)
	profileHandler := handlers.NewProfileHandler(userService, auditLogger, env)
	health := handlers.NewHealthChecker(repo, build.Version, build.GitCommit)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit, env)
	login := rateLimiter.Tier(middleware.TierLogin)
	requireAuth := middleware.RequireAuth(env)
	protected := func(h http.HandlerFunc) http.Handler { return requireAuth(h) }

	mux := http.NewServeMux()
	mux.Handle("/", notFound(env))

	route(mux, "/health", env, map[string]http.Handler{http.MethodGet: health.Health()})
	route(mux, "/healthz", env, map[string]http.Handler{http.MethodGet: handlers.Healthz()})
	route(mux, "/readyz", env, map[string]http.Handler{http.MethodGet: health.Ready()})
	route(mux, "/version", env, map[string]http.Handler{http.MethodGet: VersionHandler(build)})
	route(mux, "/metrics", env, map[string]http.Handler{
		http.MethodGet: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	})
	route(mux, "/api/openapi.json", env, map[string]http.Handler{http.MethodGet: OpenAPIHandler()})

	route(mux, "/api/auth/register/", env, map[string]http.Handler{
		http.MethodPost: login(http.HandlerFunc(authHandler.Register)),
	})
	route(mux, "/api/auth/token/", env, map[string]http.Handler{
		http.MethodPost: login(http.HandlerFunc(authHandler.Token)),
	})
	route(mux, "/api/auth/token/refresh/", env, map[string]http.Handler{
		http.MethodPost: login(http.HandlerFunc(authHandler.Refresh)),
	})

	route(mux, "/api/events/", env, map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(eventsHandler.List),
		http.MethodPost: protected(eventsHandler.Create),
	})
	route(mux, "/api/events/{id}/", env, map[string]http.Handler{
		http.MethodGet:    http.HandlerFunc(eventsHandler.Get),
		http.MethodPut:    protected(eventsHandler.Replace),
		http.MethodPatch:  protected(eventsHandler.Patch),
		http.MethodDelete: protected(eventsHandler.Delete),
	})
	route(mux, "/api/events/{id}/rsvp/", env, map[string]http.Handler{
		http.MethodPost: protected(eventsHandler.RSVP),
	})
	route(mux, "/api/events/{id}/reviews/", env, map[string]http.Handler{
		http.MethodGet: protected(eventsHandler.ListReviews),
	})

	route(mux, "/api/rsvps/", env, map[string]http.Handler{
		http.MethodGet:  protected(rsvpsHandler.List),
		http.MethodPost: protected(rsvpsHandler.Create),
	})
	route(mux, "/api/rsvps/{id}/", env, map[string]http.Handler{
		http.MethodGet:    protected(rsvpsHandler.Get),
		http.MethodPut:    protected(rsvpsHandler.Update),
		http.MethodPatch:  protected(rsvpsHandler.Update),
		http.MethodDelete: protected(rsvpsHandler.Delete),
	})

	route(mux, "/api/reviews/", env, map[string]http.Handler{
		http.MethodGet:  protected(reviewsHandler.List),
		http.MethodPost: protected(reviewsHandler.Create),
	})
	route(mux, "/api/reviews/{id}/", env, map[string]http.Handler{
		http.MethodGet:    protected(reviewsHandler.Get),
		http.MethodPut:    protected(reviewsHandler.Replace),
		http.MethodPatch:  protected(reviewsHandler.Patch),
		http.MethodDelete: protected(reviewsHandler.Delete),
	})

	route(mux, "/api/profile/", env, map[string]http.Handler{
		http.MethodGet:   protected(profileHandler.Get),
		http.MethodPut:   protected(profileHandler.Replace),
		http.MethodPatch: protected(profileHandler.Patch),
	})

	// Outermost first. Metrics sit directly on the mux so they can read the
	// matched pattern.
	chain := []func(http.Handler) http.Handler{
		middleware.CorrelationID(logger),
		middleware.RequestLogging(logger),
		middleware.Tracing,
		middleware.SecurityHeaders(env == "production"),
		middleware.CORS(cfg.CORS, logger),
		middleware.RequestSize(middleware.DefaultMaxBodySize),
		middleware.Authenticate(tokens, env),
		rateLimiter.Middleware,
		metrics.HTTPMiddleware,
	}
	var handler http.Handler = mux
	for i := len(chain) - 1; i >= 0; i-- {
		handler = chain[i](handler)
	}

	return &Router{Handler: handler, RateLimiter: rateLimiter}
}

// route registers path with and without its trailing slash. Paths ending in
// a slash are anchored so they do not match their subtree.
func route(mux *http.ServeMux, path, env string, byMethod map[string]http.Handler) {
	h := methodMux(byMethod, env)
	if strings.HasSuffix(path, "/") {
		mux.Handle(path+"{$}", h)
		mux.Handle(strings.TrimSuffix(path, "/"), h)
		return
	}
	mux.Handle(path, h)
}

func methodMux(handlers map[string]http.Handler, env string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodHead {
			if handler, ok := handlers[http.MethodGet]; ok {
				handler.ServeHTTP(w, r)
				return
			}
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		problem.Write(w, r, http.StatusMethodNotAllowed, problem.TypeMethodNotAllow, "Method not allowed",
			problem.ErrMethodNotAllowed, env)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}

func notFound(env string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", problem.ErrNotFound, env)
	})
}
