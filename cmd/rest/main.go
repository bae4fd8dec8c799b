package main

import (
	"log"

	"github.com/Prophet73/ai-chat-test/internal/bootstrap"
	"github.com/Prophet73/ai-chat-test/internal/config"
	"github.com/Prophet73/ai-chat-test/internal/server"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)
	defer container.Logger.Sync()

	// 3. Initialize Server
	srv := server.New(cfg, container)

	// 4. Run Server
	log.Fatal(srv.Run())
}
