package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"wagate/internal/gateway"
	"wagate/internal/logging"

	_ "wagate/internal/engine/loopback"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to wagated config.toml")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg, err := loadServiceConfig(*configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "wagated: %v\n", err)
			os.Exit(1)
		}
		cfg = gateway.DefaultServiceConfig()
	}

	svc := gateway.NewServiceWithConfig(cfg)
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "wagated: %v\n", err)
		os.Exit(1)
	}
}
