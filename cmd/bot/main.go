package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"KievAlerts/internal/config"
	"KievAlerts/internal/logger"
	"KievAlerts/internal/scheduler"
)

var (
	configPath string
	debugMode  bool
	runOnStart bool
	mockFeeds  bool
)

var rootCmd = &cobra.Command{
	Use:   "kievalerts",
	Short: "Telegram bot sending daily Kyiv weather forecasts and bitcoin prices",
	Long: `kievalerts polls Telegram for user requests and runs a periodic tick that
refreshes the forecast, resets per-user quotas once a day and broadcasts the
forecast and the bitcoin price to the admin inside their daily windows.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run a single tick and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context())
	},
}

func init() {
	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Debug logging and a short tick interval")
	rootCmd.PersistentFlags().BoolVar(&mockFeeds, "mock-feeds", false, "Use built-in fake weather and price feeds")
	rootCmd.Flags().BoolVar(&runOnStart, "run-on-start", os.Getenv("RUN_ON_START") == "true", "Run a tick immediately on start")
	rootCmd.AddCommand(tickCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation: %w", err)
	}
	lg, err := logger.New(cfg.App.Env, debugMode)
	if err != nil {
		return nil, nil, err
	}
	return cfg, lg, nil
}

func run(ctx context.Context) error {
	cfg, lg, err := setup()
	if err != nil {
		return err
	}
	defer lg.Sync()
	lg.Info("KievAlerts starting", zap.String("env", cfg.App.Env), zap.Bool("debug", debugMode))

	a, err := newApp(ctx, cfg, lg, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.Close()

	sched := scheduler.NewScheduler(cfg.Location(), lg)
	if err := sched.RegisterTick(cfg.Interval(debugMode), a.svc.Tick); err != nil {
		return err
	}
	if runOnStart {
		lg.Info("run-on-start enabled, executing tick now")
		if err := sched.RunNow(); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	go a.telegram.StartPolling(ctx, a.svc.HandleMessage)
	lg.Info("telegram polling started")

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				lg.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		lg.Info("metrics endpoint listening", zap.String("addr", cfg.Metrics.Addr))
	}

	lg.Info("KievAlerts is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	lg.Info("shutdown signal received, stopping...")
	return nil
}

func runOnce(ctx context.Context) error {
	cfg, lg, err := setup()
	if err != nil {
		return err
	}
	defer lg.Sync()

	a, err := newApp(ctx, cfg, lg, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer a.Close()

	a.svc.Tick()
	forecast, price := a.svc.Windows()
	lg.Info("tick finished",
		zap.Time("forecast_last_success", forecast.LastSuccess()),
		zap.Time("price_last_success", price.LastSuccess()))
	return nil
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
