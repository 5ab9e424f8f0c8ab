package main

import (
	"os"

	"github.com/hrm8/assistant/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
