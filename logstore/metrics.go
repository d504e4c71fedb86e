package logstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultName labels the metrics of a store built without WithName.
const DefaultName = "default"

var (
	storeWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flashlog_writes_total",
		Help: "Total number of entries committed to flash",
	}, []string{"store"})

	storeWriteBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flashlog_write_bytes_total",
		Help: "Total payload bytes committed to flash",
	}, []string{"store"})

	storeWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flashlog_write_errors_total",
		Help: "Total number of failed writes by error kind",
	}, []string{"store", "kind"})

	storeRotations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flashlog_rotations_total",
		Help: "Total number of sectors reclaimed to make room",
	}, []string{"store"})

	storeReadBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flashlog_read_bytes_total",
		Help: "Total payload bytes exported to readers",
	}, []string{"store"})

	storeReadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flashlog_read_errors_total",
		Help: "Total number of failed export reads",
	}, []string{"store"})

	storeReady = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flashlog_store_ready",
		Help: "1 when the log store accepts writes and reads",
	}, []string{"store"})
)

// metrics holds the series of one store.
type metrics struct {
	writes      prometheus.Counter
	writeBytes  prometheus.Counter
	writeErrors *prometheus.CounterVec
	rotations   prometheus.Counter
	readBytes   prometheus.Counter
	readErrors  prometheus.Counter
	ready       prometheus.Gauge
}

func newMetrics(name string) metrics {
	l := prometheus.Labels{"store": name}
	return metrics{
		writes:      storeWritesTotal.With(l),
		writeBytes:  storeWriteBytes.With(l),
		writeErrors: storeWriteErrors.MustCurryWith(l),
		rotations:   storeRotations.With(l),
		readBytes:   storeReadBytes.With(l),
		readErrors:  storeReadErrors.With(l),
		ready:       storeReady.With(l),
	}
}

func errorKind(err error) string {
	switch Errno(err) {
	case -errnoNoDev:
		return "not_ready"
	case -errnoNoMem:
		return "out_of_memory"
	case -errnoInval:
		return "invalid_argument"
	default:
		return "io"
	}
}
