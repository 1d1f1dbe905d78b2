package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daoservice/govsync/internal/domain"
	"github.com/daoservice/govsync/internal/domain/config"
	"github.com/daoservice/govsync/internal/domain/models"
	"github.com/daoservice/govsync/internal/usecase"
)

const namespace = "govsync"

// Collector holds the reconciliation and action metrics
type Collector struct {
	once sync.Once

	ticks        *prometheus.CounterVec
	tickDuration prometheus.Histogram
	stateChanges *prometheus.CounterVec
	tracked      prometheus.Gauge
	actions      *prometheus.CounterVec
}

// NewCollector creates a collector. Register must be called before use.
func NewCollector() *Collector {
	return &Collector{}
}

// ProvideRegistry creates the process registry with Go runtime collectors
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideCollector creates a collector registered on reg
func ProvideCollector(reg *prometheus.Registry) *Collector {
	c := NewCollector()
	c.Register(reg)
	return c
}

// ProvideServer creates the /metrics server from runtime config
func ProvideServer(cfg *config.RuntimeConfig, reg *prometheus.Registry, log *slog.Logger) *Server {
	return NewServer(cfg.Metrics, reg, log)
}

// Register creates the collectors on registry. Repeated calls are no-ops.
func (c *Collector) Register(registry prometheus.Registerer) {
	c.once.Do(func() {
		factory := promauto.With(registry)
		c.ticks = factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "ticks_total",
			Help:      "Reconciliation ticks by outcome",
		}, []string{"outcome"})
		c.tickDuration = factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "tick_duration_seconds",
			Help:      "Time spent reading and persisting one proposal state",
			Buckets:   prometheus.DefBuckets,
		})
		c.stateChanges = factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "state_changes_total",
			Help:      "Persisted proposal state transitions",
		}, []string{"from", "to"})
		c.tracked = factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "tracked_proposals",
			Help:      "Proposals currently under reconciliation",
		})
		c.actions = factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "total",
			Help:      "Governance actions by outcome",
		}, []string{"action", "outcome"})
	})
}

func (c *Collector) ObserveTick(outcome string, elapsed time.Duration) {
	if c.ticks == nil {
		return
	}
	c.ticks.WithLabelValues(outcome).Inc()
	c.tickDuration.Observe(elapsed.Seconds())
}

func (c *Collector) ObserveStateChange(from, to models.ProposalState) {
	if c.stateChanges == nil {
		return
	}
	c.stateChanges.WithLabelValues(from.String(), to.String()).Inc()
}

func (c *Collector) SetTracked(n int) {
	if c.tracked == nil {
		return
	}
	c.tracked.Set(float64(n))
}

func (c *Collector) ObserveAction(action domain.Action, outcome string) {
	if c.actions == nil {
		return
	}
	c.actions.WithLabelValues(string(action), outcome).Inc()
}

// Server exposes /metrics while the watcher runs
type Server struct {
	srv *http.Server
	log *slog.Logger
}

// NewServer creates a metrics server for registry, nil when addr is empty
func NewServer(cfg config.MetricsConfig, registry *prometheus.Registry, log *slog.Logger) *Server {
	if cfg.Addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.With("component", "MetricsServer"),
	}
}

// Addr is the listen address
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving metrics", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}

var _ usecase.Metrics = (*Collector)(nil)
