package main

import (
	"context"
	"log"

	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/config"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}

	app.Run(ctx)
}
