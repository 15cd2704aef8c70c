// Package metrics registra los colectores Prometheus de la agenda.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry contiene los colectores propios de la aplicación.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agenda",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms a ~5s
		},
		[]string{"method", "route"},
	)

	syncDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "sync",
			Name:      "deliveries_total",
			Help:      "Outbox delivery attempts by destination and result.",
		},
		[]string{"destino", "resultado"},
	)

	syncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agenda",
			Subsystem: "sync",
			Name:      "delivery_duration_seconds",
			Help:      "Duration of outbox deliveries.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"destino"},
	)
)

// Resultados posibles de una entrega
const (
	ResultadoEntregado = "entregado"
	ResultadoReintento = "reintento"
	ResultadoFallido   = "fallido"
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpDuration,
		syncDeliveries,
		syncDuration,
	)
}

// Handler expone el registro en formato Prometheus
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest registra una petición atendida
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordSyncDelivery registra un intento de entrega del outbox
func RecordSyncDelivery(destino, resultado string, duration time.Duration) {
	syncDeliveries.WithLabelValues(destino, resultado).Inc()
	syncDuration.WithLabelValues(destino).Observe(duration.Seconds())
}
