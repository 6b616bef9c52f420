package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Counts(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ClaimAttempt("User.auth_id", true)
	c.ClaimAttempt("User.auth_id", false)
	c.ClaimAttempt("User.auth_id", false)
	c.TokensPurged(3)
	c.SessionsRemoved(2)
	c.SessionCreated(true)
	c.SweepDuration("sessions", 15*time.Millisecond)

	if got := testutil.ToFloat64(c.claims.WithLabelValues("User.auth_id", "lost")); got != 2 {
		t.Fatalf("lost claims = %v", got)
	}
	if got := testutil.ToFloat64(c.tokensPurged); got != 3 {
		t.Fatalf("purged = %v", got)
	}
	if got := testutil.ToFloat64(c.sessionsCreated.WithLabelValues("true")); got != 1 {
		t.Fatalf("anonymous sessions = %v", got)
	}
}

func TestHandler_Exposes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.UserCreated()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "warden_users_created_total 1") {
		t.Fatalf("missing counter in output:\n%s", rec.Body.String())
	}
}

func TestOrNop(t *testing.T) {
	t.Parallel()

	if _, ok := OrNop(nil).(Nop); !ok {
		t.Fatalf("expected Nop for nil")
	}
	c := NewCollector(prometheus.NewRegistry())
	if OrNop(c) != Recorder(c) {
		t.Fatalf("expected passthrough")
	}
}
