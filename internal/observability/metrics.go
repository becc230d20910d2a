package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	bytesForwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "growatt",
			Subsystem: "proxy",
			Name:      "bytes_forwarded_total",
			Help:      "Bytes relayed to the peer socket.",
		},
		[]string{"direction"},
	)
	framesObserved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "growatt",
			Subsystem: "proxy",
			Name:      "frames_total",
			Help:      "Complete frames reassembled from the tap.",
		},
		[]string{"direction", "type"},
	)
	framingErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "growatt",
			Subsystem: "proxy",
			Name:      "framing_errors_total",
			Help:      "Bytes discarded while resynchronizing the frame stream.",
		},
		[]string{"direction"},
	)
	headerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "growatt",
			Subsystem: "proxy",
			Name:      "header_errors_total",
			Help:      "Frames dropped from decoding due to malformed headers.",
		},
		[]string{"direction"},
	)
	crcMismatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "growatt",
			Subsystem: "proxy",
			Name:      "crc_mismatches_total",
			Help:      "Frames whose CRC16 trailer failed verification.",
		},
	)
	partialDecodes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "growatt",
			Subsystem: "decode",
			Name:      "messages_total",
			Help:      "Decoded messages by extraction quality.",
		},
		[]string{"quality"},
	)
	tapDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "growatt",
			Subsystem: "proxy",
			Name:      "tap_dropped_chunks_total",
			Help:      "Chunk copies dropped because the tap queue was full.",
		},
		[]string{"direction"},
	)
	storageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "growatt",
			Subsystem: "storage",
			Name:      "failures_total",
			Help:      "Sink operations that failed; storage degrades, the relay does not.",
		},
		[]string{"op"},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "growatt",
			Subsystem: "proxy",
			Name:      "sessions_active",
			Help:      "Live logger connections.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			bytesForwarded, framesObserved, framingErrors, headerErrors,
			crcMismatches, partialDecodes, tapDropped, storageFailures,
			sessionsActive,
		)
	})
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func RecordBytesForwarded(direction string, n int) {
	bytesForwarded.WithLabelValues(direction).Add(float64(n))
}

func RecordFrame(direction, msgType string) {
	framesObserved.WithLabelValues(direction, msgType).Inc()
}

func RecordFramingError(direction string, droppedBytes int) {
	framingErrors.WithLabelValues(direction).Add(float64(droppedBytes))
}

func RecordHeaderError(direction string) {
	headerErrors.WithLabelValues(direction).Inc()
}

func RecordCRCMismatch() {
	crcMismatches.Inc()
}

func RecordDecode(quality string) {
	partialDecodes.WithLabelValues(quality).Inc()
}

func RecordTapDrop(direction string) {
	tapDropped.WithLabelValues(direction).Inc()
}

func RecordStorageFailure(op string) {
	storageFailures.WithLabelValues(op).Inc()
}

func SessionOpened() {
	sessionsActive.Inc()
}

func SessionClosed() {
	sessionsActive.Dec()
}
