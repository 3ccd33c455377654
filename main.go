package main

import (
	"fmt"
	"os"

	"github.com/amt2283/hunterleaf-go/cmd"
	"github.com/amt2283/hunterleaf-go/internal/conf"
	"github.com/amt2283/hunterleaf-go/internal/logging"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
