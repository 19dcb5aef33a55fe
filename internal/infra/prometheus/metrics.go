package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters updated by the tracking pipeline. EventsTracked is fed from the
// JetStream mirror consumer; the rest are incremented inline.
var (
	EventsTracked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visitrack_events_total",
		Help: "Accepted track events by event type.",
	}, []string{"event_type"})

	EventsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visitrack_events_deduplicated_total",
		Help: "Track events suppressed by the dedup window.",
	})

	ConversionsForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visitrack_conversions_total",
		Help: "Conversion forward attempts by outcome status.",
	}, []string{"status"})

	InvitesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visitrack_invites_total",
		Help: "Invite links issued, labelled dynamic or static.",
	}, []string{"kind"})
)
