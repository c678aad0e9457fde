package config

import (
	"flag"
	"fmt"
)

const HelpMessage = `
Surge pricing engine.

Usage:
  surge [flags]

Flags:
  -config-path string   Path to the config yaml file (default "config.yaml")
  -help                 Show this help message

Configuration is read from the YAML file and the environment. Environment
variables always win over file values. See config/config.go for the full
list of supported variables.
`

func PrintHelp() {
	if HelpMessage != "" {
		fmt.Printf("%s", HelpMessage)
	} else {
		flag.Usage()
	}
}

// PrintConfig prints the effective configuration with secrets masked.
func PrintConfig(cfg *Config) {
	fmt.Println("Configuration:")
	fmt.Printf("  server:   port=%s\n", cfg.Server.Port)
	fmt.Printf("  database: host=%s port=%s user=%s database=%s\n",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Database)
	fmt.Printf("  rabbitmq: host=%s port=%s user=%s\n",
		cfg.RabbitMQ.Host, cfg.RabbitMQ.Port, cfg.RabbitMQ.User)
	fmt.Printf("  redis:    addr=%s db=%d\n", cfg.Redis.Addr(), cfg.Redis.DB)
	fmt.Printf("  engine:   interval=%s max_multiplier=%.2f\n",
		cfg.Engine.EvaluationInterval, cfg.Engine.MaxGlobalMultiplier)
	fmt.Printf("  logger:   level=%s\n", cfg.Logger.Level)
}
