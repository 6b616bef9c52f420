// Package metrics exposes warden's Prometheus counters.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the domain services.
// Label values must come from a small, caller-controlled set
// (claim scopes, token purposes, field names).
type Recorder interface {
	ClaimAttempt(scope string, won bool)
	ClaimReleased(scope string)
	UserCreated()
	DuplicateRejected(field string)
	TokenIssued(purpose string)
	TokenValidated(purpose string, ok bool)
	TokensPurged(n int64)
	SessionCreated(anonymous bool)
	SessionUpgraded()
	SessionsRemoved(n int64)
	SweepDuration(job string, d time.Duration)
}

// Nop discards everything.
type Nop struct{}

func (Nop) ClaimAttempt(string, bool)           {}
func (Nop) ClaimReleased(string)                {}
func (Nop) UserCreated()                        {}
func (Nop) DuplicateRejected(string)            {}
func (Nop) TokenIssued(string)                  {}
func (Nop) TokenValidated(string, bool)         {}
func (Nop) TokensPurged(int64)                  {}
func (Nop) SessionCreated(bool)                 {}
func (Nop) SessionUpgraded()                    {}
func (Nop) SessionsRemoved(int64)               {}
func (Nop) SweepDuration(string, time.Duration) {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}

// Collector records into Prometheus.
type Collector struct {
	claims          *prometheus.CounterVec
	claimsReleased  *prometheus.CounterVec
	usersCreated    prometheus.Counter
	duplicates      *prometheus.CounterVec
	tokensIssued    *prometheus.CounterVec
	tokenChecks     *prometheus.CounterVec
	tokensPurged    prometheus.Counter
	sessionsCreated *prometheus.CounterVec
	sessionUpgrades prometheus.Counter
	sessionsRemoved prometheus.Counter
	sweepDuration   *prometheus.HistogramVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector builds a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_unique_claims_total",
			Help: "Uniqueness claim attempts by scope and outcome.",
		}, []string{"scope", "outcome"}),
		claimsReleased: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_unique_claims_released_total",
			Help: "Released uniqueness claims by scope.",
		}, []string{"scope"}),
		usersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warden_users_created_total",
			Help: "Users created.",
		}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_duplicate_rejections_total",
			Help: "Create/add operations rejected because a value was already claimed.",
		}, []string{"field"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_tokens_issued_total",
			Help: "Tokens issued by purpose.",
		}, []string{"purpose"}),
		tokenChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_token_validations_total",
			Help: "Token validations by purpose and result.",
		}, []string{"purpose", "result"}),
		tokensPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warden_tokens_purged_total",
			Help: "Expired tokens deleted by purge sweeps.",
		}),
		sessionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_sessions_created_total",
			Help: "Sessions created, split by anonymous or user-bound.",
		}, []string{"anonymous"}),
		sessionUpgrades: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warden_session_upgrades_total",
			Help: "Anonymous sessions upgraded to user sessions.",
		}),
		sessionsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warden_sessions_removed_total",
			Help: "Inactive sessions removed by sweeps.",
		}),
		sweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warden_sweep_duration_seconds",
			Help:    "Maintenance sweep latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}

	reg.MustRegister(
		c.claims,
		c.claimsReleased,
		c.usersCreated,
		c.duplicates,
		c.tokensIssued,
		c.tokenChecks,
		c.tokensPurged,
		c.sessionsCreated,
		c.sessionUpgrades,
		c.sessionsRemoved,
		c.sweepDuration,
	)
	return c
}

func (c *Collector) ClaimAttempt(scope string, won bool) {
	outcome := "lost"
	if won {
		outcome = "won"
	}
	c.claims.WithLabelValues(scope, outcome).Inc()
}

func (c *Collector) ClaimReleased(scope string) { c.claimsReleased.WithLabelValues(scope).Inc() }

func (c *Collector) UserCreated() { c.usersCreated.Inc() }

func (c *Collector) DuplicateRejected(field string) { c.duplicates.WithLabelValues(field).Inc() }

func (c *Collector) TokenIssued(purpose string) { c.tokensIssued.WithLabelValues(purpose).Inc() }

func (c *Collector) TokenValidated(purpose string, ok bool) {
	result := "invalid"
	if ok {
		result = "valid"
	}
	c.tokenChecks.WithLabelValues(purpose, result).Inc()
}

func (c *Collector) TokensPurged(n int64) { c.tokensPurged.Add(float64(n)) }

func (c *Collector) SessionCreated(anonymous bool) {
	c.sessionsCreated.WithLabelValues(strconv.FormatBool(anonymous)).Inc()
}

func (c *Collector) SessionUpgraded() { c.sessionUpgrades.Inc() }

func (c *Collector) SessionsRemoved(n int64) { c.sessionsRemoved.Add(float64(n)) }

func (c *Collector) SweepDuration(job string, d time.Duration) {
	c.sweepDuration.WithLabelValues(job).Observe(d.Seconds())
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
