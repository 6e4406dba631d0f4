package main

import (
	"os"

	"github.com/wonny/mizan/cmd/mizan/commands"
)

// main is the entry point for the Mizan CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/mizan [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
