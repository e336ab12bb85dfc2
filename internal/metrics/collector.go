// Package fixmetrics exposes a Prometheus collector implementing
// session.MetricsReporter.
package fixmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dantte-lp/gofix/internal/session"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "gofix"
	subsystem = "session"
)

// Label names for session metrics.
const (
	labelBeginString  = "begin_string"
	labelSenderCompID = "sender_comp_id"
	labelTargetCompID = "target_comp_id"
	labelMsgType      = "msg_type"
)

// -------------------------------------------------------------------------
// Collector — Prometheus Session Metrics
// -------------------------------------------------------------------------

// Collector holds all FIX session Prometheus metrics and implements
// session.MetricsReporter.
//
//   - LoggedOn tracks currently logged-on sessions.
//   - MessagesSent/MessagesReceived count wire traffic per message type.
//   - GapsDetected/ResendsServiced count recovery-path activity for
//     alerting on unreliable links or misbehaving counterparties.
type Collector struct {
	// LoggedOn tracks whether each configured session is currently
	// logged on (1) or not (0).
	LoggedOn *prometheus.GaugeVec

	// MessagesSent counts outbound FIX messages per session and MsgType.
	MessagesSent *prometheus.CounterVec

	// MessagesReceived counts inbound FIX messages per session and MsgType.
	MessagesReceived *prometheus.CounterVec

	// GapsDetected counts sequence number gaps observed per session.
	GapsDetected *prometheus.CounterVec

	// ResendsServiced counts ResendRequests serviced per session.
	ResendsServiced *prometheus.CounterVec
}

var _ session.MetricsReporter = (*Collector)(nil)

// NewCollector creates a Collector with all session metrics registered
// against reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.LoggedOn,
		c.MessagesSent,
		c.MessagesReceived,
		c.GapsDetected,
		c.ResendsServiced,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	sessionLabels := []string{labelBeginString, labelSenderCompID, labelTargetCompID}
	msgLabels := []string{labelBeginString, labelSenderCompID, labelTargetCompID, labelMsgType}

	return &Collector{
		LoggedOn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "logged_on",
			Help:      "Whether the FIX session is currently logged on (1) or not (0).",
		}, sessionLabels),

		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_sent_total",
			Help:      "Total FIX messages transmitted, by MsgType.",
		}, msgLabels),

		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_received_total",
			Help:      "Total FIX messages received, by MsgType.",
		}, msgLabels),

		GapsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "gaps_detected_total",
			Help:      "Total sequence number gaps detected.",
		}, sessionLabels),

		ResendsServiced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "resends_serviced_total",
			Help:      "Total ResendRequests serviced.",
		}, sessionLabels),
	}
}

// -------------------------------------------------------------------------
// session.MetricsReporter
// -------------------------------------------------------------------------

// IncMessagesSent increments the sent-message counter for id and msgType.
func (c *Collector) IncMessagesSent(id session.ID, msgType string) {
	c.MessagesSent.WithLabelValues(id.BeginString, id.SenderCompID, id.TargetCompID, msgType).Inc()
}

// IncMessagesReceived increments the received-message counter for id and msgType.
func (c *Collector) IncMessagesReceived(id session.ID, msgType string) {
	c.MessagesReceived.WithLabelValues(id.BeginString, id.SenderCompID, id.TargetCompID, msgType).Inc()
}

// IncGapsDetected increments the gap counter for id.
func (c *Collector) IncGapsDetected(id session.ID) {
	c.GapsDetected.WithLabelValues(id.BeginString, id.SenderCompID, id.TargetCompID).Inc()
}

// IncResendsServiced increments the resend counter for id.
func (c *Collector) IncResendsServiced(id session.ID) {
	c.ResendsServiced.WithLabelValues(id.BeginString, id.SenderCompID, id.TargetCompID).Inc()
}

// ObserveStateChange sets the logged-on gauge for id.
func (c *Collector) ObserveStateChange(id session.ID, loggedOn bool) {
	v := 0.0
	if loggedOn {
		v = 1.0
	}
	c.LoggedOn.WithLabelValues(id.BeginString, id.SenderCompID, id.TargetCompID).Set(v)
}
