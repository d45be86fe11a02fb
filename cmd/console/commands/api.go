package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/careerforge/console/internal/api"
	"github.com/careerforge/console/internal/api/handlers"
	"github.com/careerforge/console/pkg/metrics"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                                    - Health check
  GET  /api/abtests                               - 테스트 목록
  GET  /api/abtests/{name}                        - 변형별 오픈율/클릭율 + 최근 평가
  POST /api/abtests/{name}/evaluate               - 수동 평가 (body: {"dry_run": bool})
  GET  /api/abtests/{name}/evaluations?limit=20   - 평가 이력
  PUT  /api/abtests/{name}/variants/{id}/override - 수동 고정 {"active": bool}
  POST /api/significance                          - 유의성 계산기
  GET  /ws/abtests                                - 실시간 평가 피드

Example:
  go run ./cmd/console api
  go run ./cmd/console api --port 8080 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default PORT)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "같은 프로세스에서 스케줄러 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== CareerForge Campaign Console API ===")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	log := a.log
	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.hub.Run(ctx)

	abtestHandler := handlers.NewABTestHandler(a.runner, a.limiter, log)
	router := api.NewRouter(abtestHandler, a.hub, log)
	server := api.New(cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	var metricsServer *metrics.Server
	if cfg.MetricsEnabled {
		metricsServer = metrics.NewServer(cfg, log)
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	if apiWithScheduler {
		sched, err := newScheduler(a)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	if metricsServer != nil {
		fmt.Printf("   Metrics on http://localhost:%s/metrics\n", cfg.MetricsPort)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Metrics server shutdown failed")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
