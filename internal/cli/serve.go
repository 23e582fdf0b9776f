package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"smartserve/internal/api"
	"smartserve/internal/auth"
	"smartserve/internal/clock"
	"smartserve/internal/config"
	"smartserve/internal/incidents"
	"smartserve/internal/lifecycle"
	"smartserve/internal/monitoring"
	"smartserve/internal/ordering"
	"smartserve/internal/realtime"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var port, metricsPort int

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the HTTP API, live feeds and metrics server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("metrics-port") {
				cfg.MetricsConfig.Port = metricsPort
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "API server port")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 9090, "metrics server port")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Wall{}
	st, err := openStore(ctx, cfg, clk)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	insighter, err := newInsighter(cfg)
	if err != nil {
		return err
	}

	collector := monitoring.NewCollector()
	svc := ordering.New(st, clk, ordering.Options{
		Timing: lifecycle.Timing{
			BaseWait:  cfg.Timing.BaseWait,
			OrderLate: cfg.Timing.OrderLateThreshold,
		},
		Thresholds: incidents.Thresholds{
			OrderLate:   cfg.Timing.OrderLateThreshold,
			ServiceLate: cfg.Timing.ServiceLateThreshold,
		},
		FeedbackDelay: cfg.Timing.FeedbackPromptDelay,
		OrderLimit:    cfg.OrderHistoryLimit,
		ServerName:    cfg.Staff.Server,
		PreparerName:  cfg.Staff.Preparer,
		Metrics:       collector,
		Monitor:       monitoring.NewMonitor(clk),
		Insighter:     insighter,
	})

	hub := realtime.NewHub(svc, cfg.Timing.Tick)
	defer hub.Close()

	app := api.NewAPI(svc, auth.NewIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL, clk), hub)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: app.Router,
	}

	var metricsServer *http.Server
	if cfg.MetricsConfig.Enabled {
		metricsServer = newMetricsServer(cfg.MetricsConfig.Port, cfg.MetricsConfig.Path, collector)
		go func() {
			log.Printf("Starting metrics server on port %d", cfg.MetricsConfig.Port)
			if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Println("Shutting down servers...")

		hub.Close()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("API server shutdown error: %v", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Metrics server shutdown error: %v", err)
			}
		}
	}()

	log.Printf("Starting API server on port %d (venue %s, %s store)", cfg.Server.Port, cfg.Venue, cfg.Database.Driver)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

func newMetricsServer(port int, path string, collector *monitoring.Collector) *http.Server {
	metricsRouter := gin.Default()
	metricsRouter.GET(path, gin.WrapH(collector.Handler()))

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: metricsRouter,
	}
}
