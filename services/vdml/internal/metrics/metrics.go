package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"smartport-go/errcode"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	claims    *prometheus.CounterVec
	hold      *prometheus.HistogramVec
	installed prometheus.Gauge
}

// New creates the collectors and registers them on reg.
// A nil reg leaves them unregistered, which tests use.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		claims: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartport_claims_total",
				Help: "Claim attempts by port and result code.",
			},
			[]string{"port", "result"},
		),
		hold: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smartport_claim_hold_seconds",
				Help:    "Time a port stayed claimed.",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"port"},
		),
		installed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartport_ports_installed",
			Help: "Number of ports with an installed device.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.claims, m.hold, m.installed)
	}
	return m
}

// label renders the 1-indexed port used on the public surface.
func label(port int) string { return strconv.Itoa(port + 1) }

func (m *Metrics) Claim(port int, result errcode.Code) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(label(port), string(result)).Inc()
}

func (m *Metrics) Held(port int, d time.Duration) {
	if m == nil {
		return
	}
	m.hold.WithLabelValues(label(port)).Observe(d.Seconds())
}

func (m *Metrics) SetInstalled(n int) {
	if m == nil {
		return
	}
	m.installed.Set(float64(n))
}

// ClaimsCounter exposes the counter vector for assertions.
func (m *Metrics) ClaimsCounter() *prometheus.CounterVec { return m.claims }

// InstalledGauge exposes the gauge for assertions.
func (m *Metrics) InstalledGauge() prometheus.Gauge { return m.installed }
