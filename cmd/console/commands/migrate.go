package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/careerforge/console/pkg/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "campaign 스키마 적용",
	Long: `campaign.ab_variants / campaign.ab_evaluations 스키마를 생성합니다.
이미 존재하는 객체는 건너뛰므로 여러 번 실행해도 안전합니다.

Example:
  go run ./cmd/console migrate
  go run ./cmd/console migrate --print`,
	RunE: runMigrate,
}

var migratePrint bool

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().BoolVar(&migratePrint, "print", false, "SQL 만 출력하고 적용하지 않음")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if migratePrint {
		fmt.Fprint(cmd.OutOrStdout(), database.Schema())
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		PrintError("Migration failed")
		return err
	}

	PrintSuccess("campaign schema is up to date")
	return nil
}
