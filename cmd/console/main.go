package main

import (
	"os"

	"github.com/careerforge/console/cmd/console/commands"
)

// main is the entry point for the campaign console CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/console [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
