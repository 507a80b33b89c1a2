// internal/stream/metrics.go
package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wsConnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quote_relay", Subsystem: "feed", Name: "connects_total",
		Help: "WebSocket connection attempts by outcome",
	}, []string{"status"})

	wsDisconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quote_relay", Subsystem: "feed", Name: "disconnects_total",
		Help: "Lost feed connections by cause",
	}, []string{"cause"})

	wsFrames = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quote_relay", Subsystem: "feed", Name: "frames_total",
		Help: "Frames received from the feed",
	})

	wsCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quote_relay", Subsystem: "feed", Name: "commands_total",
		Help: "Subscribe/unsubscribe commands written to the feed",
	}, []string{"op"})

	wsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quote_relay", Subsystem: "feed", Name: "connected",
		Help: "1 while the feed connection is established",
	})
)
