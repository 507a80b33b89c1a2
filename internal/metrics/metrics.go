// internal/metrics/metrics.go
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// QuotesApplied — котировки, записанные в кэш.
	QuotesApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quote_relay",
		Subsystem: "pipeline",
		Name:      "quotes_applied_total",
		Help:      "Quotes written to the cache",
	})

	// StaleDrops — котировки, отброшенные как более старые, чем в кэше.
	StaleDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quote_relay",
		Subsystem: "pipeline",
		Name:      "stale_drops_total",
		Help:      "Quotes discarded because the cache already holds a newer one",
	})

	// DecodeErrors — некорректные кадры по причине.
	DecodeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quote_relay",
		Subsystem: "pipeline",
		Name:      "decode_errors_total",
		Help:      "Malformed frames dropped, by reason",
	}, []string{"reason"})

	// CachedSymbols — число символов в кэше.
	CachedSymbols = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quote_relay",
		Subsystem: "cache",
		Name:      "symbols",
		Help:      "Number of symbols with a cached quote",
	})

	// Subscriptions — размер множества подписок.
	Subscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quote_relay",
		Subsystem: "subscriptions",
		Name:      "active",
		Help:      "Number of subscribed symbols",
	})

	// Validations — результаты проверки символов: valid | invalid | error.
	Validations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quote_relay",
		Subsystem: "validator",
		Name:      "results_total",
		Help:      "Symbol validation outcomes",
	}, []string{"result", "source"})

	// SinkDrops — котировки, не попавшие в буфер Kafka-синка.
	SinkDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quote_relay",
		Subsystem: "sink",
		Name:      "buffer_drops_total",
		Help:      "Quotes dropped because the sink buffer was full",
	})
)

// Register регистрирует все метрики в заданном реестре.
// Без аргументов используется DefaultRegisterer.
func Register(registerers ...prometheus.Registerer) {
	once.Do(func() {
		var reg prometheus.Registerer
		if len(registerers) > 0 && registerers[0] != nil {
			reg = registerers[0]
		} else {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			QuotesApplied,
			StaleDrops,
			DecodeErrors,
			CachedSymbols,
			Subscriptions,
			Validations,
			SinkDrops,
		)
	})
}
