package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_active_connections",
		Help: "Active websocket connections",
	})
	ActiveRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_active_rooms",
		Help: "Rooms with at least one joined socket",
	})
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_sent_total",
		Help: "Messages durably appended",
	})
	EventErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_ws_event_errors_total",
		Help: "Per-event failures reported back to clients",
	}, []string{"event"})
)

func Init() {
	prometheus.MustRegister(ActiveConnections, ActiveRooms, MessagesSent, EventErrors)
}
