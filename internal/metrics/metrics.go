// Package metrics provides the Prometheus collectors shared by every
// payload- and ground-side role, grounded on the Describe/Collect/
// NewConstMetric idiom of runZeroInc-conniver's pkg/exporter package.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors bundles the counters a Router, Telemeter, Discriminator,
// Sorter, or Reassembler updates as it processes traffic. A nil *Collectors is valid and silently
// discards every update, so callers that don't care about metrics can pass
// nil instead of threading a no-op implementation everywhere.
type Collectors struct {
	commandsAccepted *prometheus.CounterVec
	commandsRejected *prometheus.CounterVec
	telemetrySent    *prometheus.CounterVec
	fragmentsDropped prometheus.Counter
	sessionsOpened   prometheus.Counter
	sessionsTimedOut prometheus.Counter
}

// New builds a Collectors and registers it with reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer in a cmd/ binary.
func New(reg prometheus.Registerer, role string) *Collectors {
	constLabels := prometheus.Labels{"role": role}
	c := &Collectors{
		commandsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "grips",
			Name:        "commands_accepted_total",
			Help:        "Commands that passed verification, sequence check, and dispatch.",
			ConstLabels: constLabels,
		}, []string{"cmd_type"}),
		commandsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "grips",
			Name:        "commands_rejected_total",
			Help:        "Commands that failed verification, sequence check, or dispatch, by error kind.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		telemetrySent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "grips",
			Name:        "telemetry_sent_total",
			Help:        "Telemetry datagrams transmitted, by variant.",
			ConstLabels: constLabels,
		}, []string{"telem_type"}),
		fragmentsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "grips",
			Name:        "reassembly_fragments_dropped_total",
			Help:        "Shell-reply fragments that could not be attributed to any open session.",
			ConstLabels: constLabels,
		}),
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "grips",
			Name:        "reassembly_sessions_opened_total",
			Help:        "Reassembly sessions opened on first fragment of a new burst.",
			ConstLabels: constLabels,
		}),
		sessionsTimedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "grips",
			Name:        "reassembly_sessions_timed_out_total",
			Help:        "Reassembly sessions closed by idle timeout before a terminator fragment arrived.",
			ConstLabels: constLabels,
		}),
	}
	if reg != nil {
		reg.MustRegister(c.commandsAccepted, c.commandsRejected, c.telemetrySent,
			c.fragmentsDropped, c.sessionsOpened, c.sessionsTimedOut)
	}
	return c
}

func (c *Collectors) CommandAccepted(cmdType string) {
	if c == nil {
		return
	}
	c.commandsAccepted.WithLabelValues(cmdType).Inc()
}

func (c *Collectors) CommandRejected(reason string) {
	if c == nil {
		return
	}
	c.commandsRejected.WithLabelValues(reason).Inc()
}

func (c *Collectors) TelemetrySent(telemType string) {
	if c == nil {
		return
	}
	c.telemetrySent.WithLabelValues(telemType).Inc()
}

func (c *Collectors) FragmentDropped() {
	if c == nil {
		return
	}
	c.fragmentsDropped.Inc()
}

func (c *Collectors) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsOpened.Inc()
}

func (c *Collectors) SessionTimedOut() {
	if c == nil {
		return
	}
	c.sessionsTimedOut.Inc()
}
