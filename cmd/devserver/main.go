package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Flgjfvevdk/pilot-together/internal/config"
	"github.com/Flgjfvevdk/pilot-together/internal/devserver"
)

func main() {
	// Load .env file from current directory
	if err := godotenv.Load(".env"); err != nil {
		// Try parent directory as fallback
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from .env")
	}

	log.Println("🛰️ ================================")
	log.Println("🛰️  PILOT TOGETHER - DEV SERVER")
	log.Println("🛰️ ================================")

	appConfig := config.Load()
	devCfg := appConfig.DevServer

	log.Printf("🎮 Config: tick %v, %d max clients, seed %d, flattened snapshots %v",
		devCfg.TickInterval, devCfg.MaxClients, devCfg.Seed, devCfg.FlattenedSnapshots)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := devserver.NewServer(devserver.ConfigFrom(appConfig))
	addr := fmt.Sprintf(":%d", devCfg.Port)

	log.Printf("🌐 Listening on http://localhost%s (websocket /ws, admin /api)", addr)
	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	if err := server.Start(ctx, addr); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}
	log.Println("👋 Goodbye!")
}
