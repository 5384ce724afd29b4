package main

import (
	"log"

	"herald/bot/handlers"
	"herald/core/bootstrap"
	"herald/core/buildinfo"
	corecmd "herald/core/cmd"
	coreconfig "herald/core/config"
)

func main() {
	log.Printf("herald %s", buildinfo.Short())

	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		Bootstrap: func(cfg *coreconfig.Config) (corecmd.App, error) {
			res, err := bootstrap.Run(bootstrap.Options{Config: cfg})
			if err != nil {
				return nil, err
			}
			return handlers.New(cfg, res.DB), nil
		},
	})
	if err != nil {
		log.Fatalf("herald: %v", err)
	}
}
