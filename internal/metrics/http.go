package metrics

import (
	"context"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const pathLabel = "path"

var sizeBuckets = []float64{100, 1000, 10000, 100000, 1000000, 10000000}

var (
	HTTPRequestsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"code", "method", pathLabel},
	)

	HTTPRequestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", pathLabel},
	)

	HTTPRequestsInFlight = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)

	HTTPRequestSize = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "Approximate HTTP request size in bytes",
			Buckets:   sizeBuckets,
		},
		[]string{"method", pathLabel},
	)

	HTTPResponseSize = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response body size in bytes",
			Buckets:   sizeBuckets,
		},
		[]string{"method", pathLabel},
	)
)

type routeKey struct{}

// route carries the matched pattern from inside the mux back out to the
// promhttp label function.
type route struct {
	label string
}

func routeFromContext(ctx context.Context) string {
	if rt, ok := ctx.Value(routeKey{}).(*route); ok && rt.label != "" {
		return rt.label
	}
	return "unmatched"
}

// HTTPMiddleware records request metrics labelled by route pattern. It must
// wrap the ServeMux directly so the matched pattern is visible on the
// request after next returns.
func HTTPMiddleware(next http.Handler) http.Handler {
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		if rt, ok := r.Context().Value(routeKey{}).(*route); ok {
			rt.label = routeLabel(r)
		}
	})

	byRoute := promhttp.WithLabelFromCtx(pathLabel, routeFromContext)
	instrumented := promhttp.InstrumentHandlerInFlight(HTTPRequestsInFlight,
		promhttp.InstrumentHandlerDuration(HTTPRequestDuration,
			promhttp.InstrumentHandlerCounter(HTTPRequestsTotal,
				promhttp.InstrumentHandlerRequestSize(HTTPRequestSize,
					promhttp.InstrumentHandlerResponseSize(HTTPResponseSize, capture, byRoute),
					byRoute),
				byRoute),
			byRoute),
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), routeKey{}, &route{})
		instrumented.ServeHTTP(w, r.WithContext(ctx))
	})
}

// routeLabel returns the matched mux pattern with wildcards collapsed so the
// path label stays bounded. Requests that matched no route share one label.
func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	pattern := r.Pattern
	if _, path, ok := strings.Cut(pattern, " "); ok {
		pattern = path
	}
	return normalizePath(pattern)
}

// normalizePath replaces every {wildcard} segment with {param} and drops the
// {$} end anchor.
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		return path
	}
	path = strings.TrimSuffix(path, "{$}")
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			segments[i] = "{param}"
		}
	}
	return strings.Join(segments, "/")
}
