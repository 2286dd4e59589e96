package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	apischedule "schedcal/api/schedule"
	"schedcal/config"
	coremetrics "schedcal/core/metrics"
	"schedcal/core/scheduler"
	"schedcal/core/solver"
	"schedcal/infra/gcal"
	"schedcal/infra/logger"
	"schedcal/infra/metrics"
	"schedcal/infra/monday"
	"schedcal/internal/eventbus"
)

// Service wires the scheduling engine to its HTTP surface, metrics sinks
// and downstream sync agents.
type Service struct {
	Engine      *scheduler.Engine
	bus         *eventbus.TypedBus[scheduler.RunCompleted]
	log         logger.Logger
	monday      *monday.Client
	apiAddr     string
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	calendar, err := cfg.Calendar.Build()
	if err != nil {
		return nil, fmt.Errorf("calendar: %w", err)
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(nil)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics, logger.New("influx")))
	}
	var sink coremetrics.Sink
	switch len(sinks) {
	case 0:
		sink = coremetrics.NopSink{}
	case 1:
		sink = sinks[0]
	default:
		sink = metrics.NewMultiSink(sinks...)
	}

	var busy scheduler.BusySource
	if cfg.GCal.Enabled {
		fetcher, err := gcal.NewBusyFetcher(ctx, cfg.GCal)
		if err != nil {
			return nil, fmt.Errorf("gcal: %w", err)
		}
		busy = fetcher
	}

	bus := eventbus.NewTyped[scheduler.RunCompleted]()
	engine := &scheduler.Engine{
		Calendar: calendar,
		Rules:    cfg.Rules.Build(),
		Slot:     cfg.Solver.Slot(),
		Solver: &solver.BranchAndBound{
			Budget:    cfg.Solver.Budget(),
			NodeLimit: cfg.Solver.NodeLimit,
			Log:       logger.New("solver"),
		},
		Log:     logger.New("engine"),
		Metrics: sink,
		Bus:     bus,
		Busy:    busy,
	}

	svc := &Service{
		Engine:      engine,
		bus:         bus,
		log:         logg,
		apiAddr:     cfg.API.Addr,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}
	if cfg.Monday.Enabled {
		svc.monday = monday.NewClient(cfg.Monday, logger.New("monday"))
	}
	return svc, nil
}

// Run starts the HTTP API and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.consumeRuns(ctx)
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	mux := http.NewServeMux()
	mux.Handle("/api/schedule", apischedule.NewHandler(s.Engine))
	srv := &http.Server{Addr: s.apiAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("server shutdown: %v", err)
		}
	}()
	s.log.Infof("listening on %s", s.apiAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// consumeRuns forwards completed schedules to the monday.com board.
func (s *Service) consumeRuns(ctx context.Context) {
	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			if s.monday == nil {
				continue
			}
			if err := s.monday.PublishSchedule(ctx, e.Schedule.Scheduled); err != nil {
				s.log.Errorf("run %s: monday sync: %v", e.RunID, err)
			} else {
				s.log.Infof("run %s: synced %d appointments to monday", e.RunID, len(e.Schedule.Scheduled))
			}
		}
	}
}

// RunOnce executes a single scheduling run from an input file and writes
// the resulting document to outputPath, or stdout when empty.
func (s *Service) RunOnce(ctx context.Context, inputPath, outputPath string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	in, err := scheduler.ParseInput(data)
	if err != nil {
		return err
	}
	res, err := s.Engine.Run(ctx, in)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(scheduler.BuildOutput(res), "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')
	if outputPath == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	return os.WriteFile(outputPath, out, 0o644)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	return nil
}
