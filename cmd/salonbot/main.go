package main

import (
	"context"
	"fmt"
	"log"

	"github.com/m3rciful/salonbot/core/cmd"
	"github.com/m3rciful/salonbot/salon/app"
	"github.com/m3rciful/salonbot/salon/config"
)

func main() {
	err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			cfg, err := config.Load(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(ctx context.Context, c cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			cfg, ok := c.(*config.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", c)
			}
			return app.New(ctx, cfg)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
