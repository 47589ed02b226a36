package main

import (
	"context"
	"log"
	"os"

	"github.com/harrylevesque/qrticket/internal/config"
	"github.com/harrylevesque/qrticket/internal/secrets"
	"github.com/harrylevesque/qrticket/internal/server"
)

func main() {
	ctx := context.Background()
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := server.NewApp(ctx, cfg, secrets.NewEnvFileSource(cfg.SecretsDir))
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}
