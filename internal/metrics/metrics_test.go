package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chassis-controller/internal/pid"
)

// TestObserveManeuver tests counter and histogram updates
func TestObserveManeuver(t *testing.T) {
	// Arrange
	m := New()

	// Act
	m.ObserveManeuver("drive_to", "settled", 1200*time.Millisecond)
	m.ObserveManeuver("drive_to", "settled", 900*time.Millisecond)
	m.ObserveManeuver("drive_to", "timeout", 3*time.Second)

	// Assert
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ManeuversTotal.WithLabelValues("drive_to", "settled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ManeuversTotal.WithLabelValues("drive_to", "timeout")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ManeuverDuration))
}

// TestGauges tests pose, PID and mode gauges
func TestGauges(t *testing.T) {
	// Arrange
	m := New()

	// Act
	m.SetPose(12, -3, 90, 90)
	m.SetPIDTerms("turn", pid.Terms{P: 1, I: 2, D: 3, Error: 4})
	m.SetMode("autonomous", []string{"disabled", "autonomous"})
	m.IncOdometryTicks("both")
	m.IncHeadingCorrections()

	// Assert
	assert.Equal(t, 12.0, testutil.ToFloat64(m.PoseX))
	assert.Equal(t, -3.0, testutil.ToFloat64(m.PoseY))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PIDDerivative.WithLabelValues("turn")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.PIDError.WithLabelValues("turn")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mode.WithLabelValues("autonomous")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Mode.WithLabelValues("disabled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OdometryTicks.WithLabelValues("both")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HeadingCorrections))

	m.Reset()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PoseX))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HeadingCorrections))
}

// TestNilMetrics_NoPanic tests that a nil receiver records nothing
func TestNilMetrics_NoPanic(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveManeuver("swing", "settled", time.Second)
		m.SetPose(1, 2, 3, 4)
		m.SetPIDTerms("distance", pid.Terms{})
		m.IncOdometryTicks("none")
		m.IncHeadingCorrections()
		m.SetMode("driver", nil)
		m.Reset()
	})
	assert.Nil(t, m.Registry())
}

// TestHandler_Health tests the health endpoint payload
func TestHandler_Health(t *testing.T) {
	// Arrange
	m := New()
	h := m.Handler(zap.NewNop(), func() string { return "driver" })
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	// Act
	h.ServeHTTP(rec, req)

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "driver", resp.Mode)
}

// TestHandler_Metrics tests that registered series are exposed
func TestHandler_Metrics(t *testing.T) {
	// Arrange
	m := New()
	m.ObserveManeuver("boomerang", "final_approach", 0)
	h := m.Handler(zap.NewNop(), nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	// Act
	h.ServeHTTP(rec, req)

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `chassis_maneuvers_total{outcome="final_approach",primitive="boomerang"} 1`))
}
