package main

import (
	"context"
	"flag"
	"os"

	"github.com/nomadride/surge-engine/config"
	_ "github.com/nomadride/surge-engine/docs"
	"github.com/nomadride/surge-engine/internal/app"
	"github.com/nomadride/surge-engine/pkg/logger"
)

var (
	helpFlag   = flag.Bool("help", false, "Show help message")
	configPath = flag.String("config-path", "config.yaml", "Path to the config yaml file")
)

func main() {
	flag.Parse()
	if *helpFlag {
		config.PrintHelp()
		return
	}

	ctx := context.Background()
	log := logger.InitLogger("surge-engine", logger.LevelDebug)

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		log.Error(ctx, "failed to configure application", err)
		config.PrintHelp()
		return
	}

	if logger.ValidateLogLevel(cfg.Logger.Level) {
		log = logger.InitLogger("surge-engine", cfg.Logger.Level)
	}

	// Printing configuration
	config.PrintConfig(cfg)

	// Creating application
	application, err := app.NewApplication(ctx, *cfg, log)
	if err != nil {
		log.Error(ctx, "failed to init application", err)
		os.Exit(1)
	}

	// Running the application
	if err = application.Run(ctx); err != nil {
		log.Error(ctx, "failed to run application", err)
		os.Exit(1)
	}
}
