package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/careerforge/console/internal/scheduler"
	"github.com/careerforge/console/internal/scheduler/jobs"
	"github.com/careerforge/console/pkg/metrics"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (완료까지 대기)
  status  - 작업 실행 상태 조회

Example:
  go run ./cmd/console scheduler start
  go run ./cmd/console scheduler list
  go run ./cmd/console scheduler run abtest_evaluation`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- abtest_evaluation: 매일 03:00 (ABTEST_SCHEDULE, 모든 테스트 평가)
- evaluation_retention: 매일 04:30 (ABTEST_RETENTION_SCHEDULE, 오래된 평가 이력 삭제)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "작업 실행 상태 조회",
		RunE:  showStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

// newScheduler registers the evaluation and retention jobs
func newScheduler(a *app) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log, scheduler.DefaultOptions())

	if err := sched.AddJob(jobs.NewABTestEvaluationJob(a.runner, a.cfg.ABTest.Schedule, a.log)); err != nil {
		return nil, err
	}

	retention := jobs.NewEvaluationRetentionJob(a.repo, a.cfg.ABTest.HistoryRetention, a.cfg.ABTest.RetentionSchedule, a.log)
	if err := sched.AddJob(retention); err != nil {
		return nil, err
	}

	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== CareerForge Scheduler ===")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	var metricsServer *metrics.Server
	if cfg.MetricsEnabled {
		metricsServer = metrics.NewServer(cfg, a.log)
		go func() {
			if err := metricsServer.Start(); err != nil {
				a.log.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		next, _ := sched.NextRun(jobName)
		fmt.Printf("  - %-22s next: %s\n", jobName, next.Format("2006-01-02 15:04:05"))
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	if metricsServer != nil {
		_ = metricsServer.Shutdown(context.Background())
	}
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	stats := sched.GetJobStats()

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %-22s %s\n", jobName, stats[jobName].Schedule)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Printf("Running job: %s\n", jobName)

	result, err := sched.RunJobSync(cmd.Context(), jobName)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	PrintSuccess(fmt.Sprintf("Job %s completed in %s", jobName, result.Duration.Round(time.Millisecond)))
	return nil
}

// showStatus prints job stats of a freshly built scheduler.
// History lives in memory, so a new process reports schedules and next runs only.
func showStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	stats := sched.GetJobStats()

	fmt.Println("Job Statistics:")
	fmt.Println()

	for _, jobName := range sched.GetAllJobs() {
		stat := stats[jobName]
		fmt.Printf("📊 %s\n", jobName)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		if next, ok := sched.NextRun(jobName); ok {
			fmt.Printf("   Next Run: %s\n", next.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)

		if stat.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}

		fmt.Println()
	}

	// Latest recorded evaluation per test, from storage
	names, err := a.runner.Tests(cmd.Context())
	if err != nil {
		return fmt.Errorf("list tests: %w", err)
	}

	fmt.Println("Latest evaluations:")
	for _, name := range names {
		latest, err := a.runner.LatestEvaluation(cmd.Context(), name)
		if err != nil {
			PrintWarning(fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if latest == nil {
			fmt.Printf("   • %-28s never evaluated\n", name)
			continue
		}
		fmt.Printf("   • %-28s %s  [%s, %s]\n", name, latest.Status(),
			latest.Trigger, latest.EvaluatedAt.Local().Format("2006-01-02 15:04"))
	}

	return nil
}
