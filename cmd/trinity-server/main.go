// Command trinity-server serves the validation API.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/app"
	"github.com/QUANTMATRIXAI/trinity-dev/pkg/contracts"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	// Environment from .env fills in TRINITY_* settings not already set
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	application, err := app.NewApplication()
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
