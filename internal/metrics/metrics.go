package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gambit",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"service", "method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gambit",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "method", "path", "status"})

	httpInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gambit",
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests",
	}, []string{"service"})

	// Rooms tracks the number of live voice rooms in the registry.
	Rooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gambit",
		Subsystem: "signaling",
		Name:      "rooms",
		Help:      "Current number of live voice rooms",
	})

	// Participants tracks the number of joined participants across all rooms.
	Participants = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gambit",
		Subsystem: "signaling",
		Name:      "participants",
		Help:      "Current number of room participants",
	})

	// Observers tracks the number of membership subscriptions across all rooms.
	Observers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gambit",
		Subsystem: "signaling",
		Name:      "observers",
		Help:      "Current number of room membership observers",
	})

	// Joins counts joins by type ("fresh" or "reconnect").
	Joins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gambit",
		Subsystem: "signaling",
		Name:      "joins_total",
		Help:      "Total number of room joins",
	}, []string{"type"})

	// SignalsRelayed counts delivered signaling messages by kind.
	SignalsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gambit",
		Subsystem: "signaling",
		Name:      "relayed_total",
		Help:      "Total number of signaling messages delivered",
	}, []string{"kind"})

	// SignalsDropped counts signaling messages whose target peer was not found.
	SignalsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gambit",
		Subsystem: "signaling",
		Name:      "dropped_total",
		Help:      "Total number of signaling messages dropped",
	}, []string{"kind"})
)

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("signaling metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request metrics with Prometheus labels.
func Middleware(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			httpInFlight.WithLabelValues(service).Inc()
			defer httpInFlight.WithLabelValues(service).Dec()

			next.ServeHTTP(rec, r)

			labels := prometheus.Labels{
				"service": service,
				"method":  r.Method,
				"path":    r.URL.Path,
				"status":  strconv.Itoa(rec.status),
			}

			httpRequests.With(labels).Inc()
			httpLatency.With(labels).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
