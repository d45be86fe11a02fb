package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/careerforge/console/internal/abtest"
	"github.com/careerforge/console/internal/catalog"
	"github.com/careerforge/console/pkg/database"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed <catalog.yaml>",
	Short: "YAML 카탈로그로 A/B 테스트 변형 등록",
	Long: `YAML 카탈로그 파일에 선언된 테스트와 변형을 campaign.ab_variants 에 등록합니다.

기존 변형은 라벨만 갱신됩니다. --reset 을 주면 카운터, 가중치, 활성 상태까지
카탈로그 값으로 덮어씁니다 (로컬 개발/데모용).

Example:
  go run ./cmd/console seed campaigns.yaml --validate-only
  go run ./cmd/console seed campaigns.yaml --reset`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

var (
	seedReset        bool
	seedValidateOnly bool
)

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().BoolVar(&seedReset, "reset", false, "기존 카운터/상태를 카탈로그 값으로 덮어쓰기")
	seedCmd.Flags().BoolVar(&seedValidateOnly, "validate-only", false, "검증만 하고 DB 에 쓰지 않음")
}

func runSeed(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cat, snap, err := catalog.Load(args[0])
	if err != nil {
		if catalog.IsValidationError(err) {
			PrintError("Catalog validation failed")
		}
		return err
	}

	writeHeader(out, "Catalog")
	writeKeyValue(out, "File", args[0])
	writeKeyValue(out, "Hash", snap.Hash[:12])
	writeKeyValue(out, "Tests", fmt.Sprintf("%d", snap.Tests))
	writeKeyValue(out, "Variants", fmt.Sprintf("%d", snap.Variants))

	if seedValidateOnly {
		PrintSuccess("catalog is valid")
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

	written, err := abtest.NewRepository(db.Pool).UpsertVariants(ctx, cat.Variants(), seedReset)
	if err != nil {
		PrintError("Seed failed")
		return err
	}

	if skipped := int64(snap.Variants) - written; skipped > 0 {
		PrintWarning(fmt.Sprintf("%d variant IDs belong to another test and were skipped", skipped))
	}
	PrintSuccess(fmt.Sprintf("%d variants written", written))
	return nil
}
