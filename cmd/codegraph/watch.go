package main

import (
	"codegraph/internal/engine/graph"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func (c *cli) watchCmd() *cobra.Command {
	var metrics bool
	cmd := &cobra.Command{
		Use:   "watch <root>",
		Short: "Rebuild the graph whenever a source file changes",
		Long: `Rebuild the graph whenever a source file changes.

With the store enabled every rebuild is saved under the "head" label.
Prometheus metrics are served on /metrics when enabled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			status := &watchStatus{}
			if metrics || c.cfg.Observability.EnableMetrics {
				srv := newMetricsServer(fmt.Sprintf(":%d", c.cfg.Observability.MetricsPort), status)
				if err := srv.Start(); err != nil {
					return err
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Stop(shutdownCtx)
				}()
			}

			return c.svc.Watch(ctx, args[0], func(g *graph.CodeGraph, changed []string) {
				status.record(g, len(changed))
				if c.human() {
					renderRebuild(c.out, g, changed)
					return
				}
				_ = c.writeJSON(rebuildEvent{GraphSummary: graphSummaryOf(g), Changed: changed})
			})
		},
	}
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Serve Prometheus metrics on the configured port")
	return cmd
}

type rebuildEvent struct {
	GraphSummary
	Changed []string `json:"changed"`
}

// healthReport is what /health says about the latest rebuild.
type healthReport struct {
	Status   string    `json:"status"`
	GraphID  string    `json:"graphId,omitempty"`
	Files    int       `json:"files"`
	Rebuilds int       `json:"rebuilds"`
	Changed  int       `json:"lastChanged"`
	At       time.Time `json:"at"`
}

type watchStatus struct {
	mu     sync.Mutex
	report healthReport
}

func (s *watchStatus) record(g *graph.CodeGraph, changed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = healthReport{
		Status:   "up",
		GraphID:  g.ID,
		Files:    g.FileCount(),
		Rebuilds: s.report.Rebuilds + 1,
		Changed:  changed,
		At:       time.Now().UTC(),
	}
}

func (s *watchStatus) snapshot() healthReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.report
	if out.Status == "" {
		out.Status = "starting"
	}
	return out
}

type metricsServer struct {
	addr   string
	status *watchStatus
	server *http.Server
}

func newMetricsServer(addr string, status *watchStatus) *metricsServer {
	return &metricsServer{addr: addr, status: status}
}

func (s *metricsServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		st := s.status.snapshot()
		w.Header().Set("Content-Type", "application/json")
		if st.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(st)
	})
	return mux
}

// Start binds the listener before returning so a busy port fails the command.
func (s *metricsServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics listener on %s: %w", s.addr, err)
	}
	s.server = &http.Server{Handler: s.handler(), ReadHeaderTimeout: 5 * time.Second}
	slog.Info("metrics server starting", "addr", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	return nil
}

func (s *metricsServer) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
