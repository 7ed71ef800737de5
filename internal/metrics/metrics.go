// Package metrics exposes the controller's Prometheus metrics and the /metrics and
// /health HTTP endpoints. A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"chassis-controller/internal/pid"
)

// Metrics holds all Prometheus metrics for the chassis controller
type Metrics struct {
	// Maneuver metrics
	ManeuversTotal   *prometheus.CounterVec   // Finished maneuvers by primitive and outcome
	ManeuverDuration *prometheus.HistogramVec // Maneuver wall time

	// Pose metrics
	PoseX        prometheus.Gauge // Field x in inches
	PoseY        prometheus.Gauge // Field y in inches
	Heading      prometheus.Gauge // Cumulative heading in degrees
	CorrectAngle prometheus.Gauge // Heading the robot is told to hold

	// PID metrics, labelled by controller role (distance, turn, heading, ...)
	PIDProportional *prometheus.GaugeVec
	PIDIntegral     *prometheus.GaugeVec
	PIDDerivative   *prometheus.GaugeVec
	PIDError        *prometheus.GaugeVec

	// Background task metrics
	OdometryTicks      *prometheus.CounterVec // Estimator steps by variant
	HeadingCorrections prometheus.Counter     // Ticks heading-hold drove the motors
	Mode               *prometheus.GaugeVec   // Operating mode (1=current)

	registry  *prometheus.Registry
	startTime time.Time
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	Mode      string    `json:"mode,omitempty"`
}

// New creates all metrics and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		ManeuversTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chassis_maneuvers_total",
				Help: "Total number of finished maneuvers by primitive and outcome",
			},
			[]string{"primitive", "outcome"},
		),
		ManeuverDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chassis_maneuver_duration_seconds",
				Help:    "Maneuver execution time in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 3.0, 5.0},
			},
			[]string{"primitive"},
		),
		PoseX: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chassis_pose_x_inches",
				Help: "Estimated field x position in inches",
			},
		),
		PoseY: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chassis_pose_y_inches",
				Help: "Estimated field y position in inches",
			},
		),
		Heading: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chassis_heading_degrees",
				Help: "Cumulative heading in degrees",
			},
		),
		CorrectAngle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chassis_correct_angle_degrees",
				Help: "Heading the robot holds between maneuvers",
			},
		),
		PIDProportional: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chassis_pid_proportional",
				Help: "PID proportional term",
			},
			[]string{"role"},
		),
		PIDIntegral: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chassis_pid_integral",
				Help: "PID integral term",
			},
			[]string{"role"},
		),
		PIDDerivative: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chassis_pid_derivative",
				Help: "PID derivative term",
			},
			[]string{"role"},
		),
		PIDError: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chassis_pid_error",
				Help: "PID error",
			},
			[]string{"role"},
		),
		OdometryTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chassis_odometry_ticks_total",
				Help: "Total number of odometry estimator steps",
			},
			[]string{"variant"},
		),
		HeadingCorrections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chassis_heading_corrections_total",
				Help: "Ticks on which heading-hold commanded the drivetrain",
			},
		),
		Mode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chassis_mode",
				Help: "Operating mode (1=current, 0=inactive)",
			},
			[]string{"mode"},
		),
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}

	m.registry.MustRegister(
		m.ManeuversTotal,
		m.ManeuverDuration,
		m.PoseX,
		m.PoseY,
		m.Heading,
		m.CorrectAngle,
		m.PIDProportional,
		m.PIDIntegral,
		m.PIDDerivative,
		m.PIDError,
		m.OdometryTicks,
		m.HeadingCorrections,
		m.Mode,
	)

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveManeuver records a finished maneuver.
func (m *Metrics) ObserveManeuver(primitive, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ManeuversTotal.WithLabelValues(primitive, outcome).Inc()
	m.ManeuverDuration.WithLabelValues(primitive).Observe(elapsed.Seconds())
}

// SetPose updates the pose gauges.
func (m *Metrics) SetPose(x, y, heading, correctAngle float64) {
	if m == nil {
		return
	}
	m.PoseX.Set(x)
	m.PoseY.Set(y)
	m.Heading.Set(heading)
	m.CorrectAngle.Set(correctAngle)
}

// SetPIDTerms updates the term gauges of one controller role.
func (m *Metrics) SetPIDTerms(role string, terms pid.Terms) {
	if m == nil {
		return
	}
	m.PIDProportional.WithLabelValues(role).Set(terms.P)
	m.PIDIntegral.WithLabelValues(role).Set(terms.I)
	m.PIDDerivative.WithLabelValues(role).Set(terms.D)
	m.PIDError.WithLabelValues(role).Set(terms.Error)
}

// IncOdometryTicks counts one estimator step.
func (m *Metrics) IncOdometryTicks(variant string) {
	if m == nil {
		return
	}
	m.OdometryTicks.WithLabelValues(variant).Inc()
}

// IncHeadingCorrections counts one heading-hold drive tick.
func (m *Metrics) IncHeadingCorrections() {
	if m == nil {
		return
	}
	m.HeadingCorrections.Inc()
}

// SetMode marks current as the active operating mode among all.
func (m *Metrics) SetMode(current string, all []string) {
	if m == nil {
		return
	}
	for _, mode := range all {
		v := 0.0
		if mode == current {
			v = 1
		}
		m.Mode.WithLabelValues(mode).Set(v)
	}
}

// Reset resets all gauges to zero (useful for testing)
func (m *Metrics) Reset() {
	if m == nil {
		return
	}
	m.PoseX.Set(0)
	m.PoseY.Set(0)
	m.Heading.Set(0)
	m.CorrectAngle.Set(0)
	m.PIDProportional.Reset()
	m.PIDIntegral.Reset()
	m.PIDDerivative.Reset()
	m.PIDError.Reset()
	m.Mode.Reset()

	// Counters and histograms are cumulative
}

// Handler returns the mux serving /metrics and /health. modeFn may be nil.
func (m *Metrics) Handler(logger *zap.Logger, modeFn func() string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Uptime:    time.Since(m.startTime).String(),
		}
		if modeFn != nil {
			response.Mode = modeFn()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(response); err != nil {
			logger.Warn("failed to encode health response", zap.Error(err))
		}
	})
	return mux
}

// Serve runs the metrics server on port until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, port int, logger *zap.Logger, modeFn func() string) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(logger, modeFn),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}
