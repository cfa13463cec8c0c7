package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rentspot",
		Subsystem: "chat",
		Name:      "active_rooms",
		Help:      "Rooms with at least one subscriber on this instance.",
	})
	eventsBroadcast = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentspot",
		Subsystem: "chat",
		Name:      "events_broadcast_total",
		Help:      "Events fanned out to rooms, by type.",
	}, []string{"type"})
	deliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentspot",
		Subsystem: "chat",
		Name:      "delivery_failures_total",
		Help:      "Events a subscriber could not accept, by type.",
	}, []string{"type"})
	messagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rentspot",
		Subsystem: "chat",
		Name:      "messages_sent_total",
		Help:      "Messages persisted and broadcast.",
	})
	relayedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentspot",
		Subsystem: "chat",
		Name:      "relayed_events_total",
		Help:      "Events received from other instances, by name.",
	}, []string{"name"})
)
