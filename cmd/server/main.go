package main

import (
	"context"
	"log"

	server "github.com/lskl-cc/souzou/internal/server"
	"github.com/lskl-cc/souzou/internal/server/config"
)

func main() {
	cfg := config.LoadConfig()

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(context.Background())
}
