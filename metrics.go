package gossipsim

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Simulator metrics, shared by every engine in the process
var (
	mEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gossipsim",
		Name:      "messages_enqueued_total",
		Help:      "Number of deliveries put in flight",
	})
	mDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gossipsim",
		Name:      "messages_delivered_total",
		Help:      "Number of deliveries handed to a recipient",
	})
	mDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gossipsim",
		Name:      "messages_dropped_total",
		Help:      "Number of in-flight deliveries lost to unreliability",
	})
	mSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gossipsim",
		Name:      "sends_suppressed_total",
		Help:      "Number of send calls that enqueued nothing because the send failed",
	})
	mTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gossipsim",
		Name:      "ticks_total",
		Help:      "Number of simulated ticks completed",
	})
	mQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gossipsim",
		Name:      "queue_depth",
		Help:      "Deliveries pending in the event queue of the most recently ticked simulator",
	})
	mSleepDebt = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gossipsim",
		Name:      "sleep_debt_seconds",
		Help:      "Wall-clock seconds the pacing loop owes",
	})
)
