package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"

	"github.com/Flgjfvevdk/pilot-together/internal/config"
	"github.com/Flgjfvevdk/pilot-together/internal/debug"
	"github.com/Flgjfvevdk/pilot-together/internal/journal"
	"github.com/Flgjfvevdk/pilot-together/internal/render"
	"github.com/Flgjfvevdk/pilot-together/internal/session"
	"github.com/Flgjfvevdk/pilot-together/internal/terminal"
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

	// PILOT_HEADLESS=true runs without the terminal UI (debug server only)
	headless := os.Getenv("PILOT_HEADLESS") == "true"

	// The terminal UI owns stdout, so logs go to a file while it runs
	if !headless {
		logPath := getEnvWithDefault("PILOT_LOG_PATH", "pilot-client.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log %s: %v\n", logPath, err)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	log.Println("🚀 ================================")
	log.Println("🚀  PILOT TOGETHER - CLIENT")
	log.Println("🚀 ================================")

	appConfig := config.Load()
	connCfg := appConfig.Connection
	sceneCfg := appConfig.Scene

	log.Printf("📡 Server: %s", connCfg.ServerURL)
	log.Printf("🎮 Config: aim every %v, %d weapon slots, field %dx%d",
		appConfig.Input.AimPeriod, appConfig.Input.WeaponSlots, sceneCfg.FieldWidth, sceneCfg.FieldHeight)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start protocol journal
	var jrnl *journal.Journal
	if path := appConfig.Debug.JournalPath; path != "" {
		jrnl = journal.New()
		if err := jrnl.Start(path); err != nil {
			log.Printf("⚠️ Journal disabled: %v", err)
			jrnl = nil
		} else {
			log.Printf("📝 Journal: %s", path)
			defer jrnl.Stop()
		}
	}

	ctrl := session.New(session.ConfigFrom(appConfig), session.Deps{
		Dialer:  session.WebsocketDialer{HandshakeTimeout: connCfg.DialTimeout},
		Journal: jrnl,
	})
	ctrl.OnStateChange(func(s session.Status) {
		log.Printf("📡 %s: %s", s.State, s.Connection)
	})

	// Start debug server
	sprites, err := render.NewSpriteCache(connCfg.ServerURL, render.DefaultMaxSprites)
	if err != nil {
		log.Printf("⚠️ Sprites disabled: %v", err)
	}
	renderer := render.New(render.Config{
		Width:     sceneCfg.FieldWidth,
		Height:    sceneCfg.FieldHeight,
		Colliders: sceneCfg.DebugColliders,
		Sprites:   sprites,
	})
	router := debug.NewRouter(debug.RouterConfig{
		Session:        ctrl,
		Renderer:       renderer,
		Journal:        jrnl,
		DisableLogging: !headless,
	})
	if err := debug.Start(ctx, appConfig.Debug, router); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	go ctrl.Run(ctx)
	if err := ctrl.Join(connCfg.PlayerName); err != nil {
		log.Printf("⚠️ Join failed: %v", err)
	}

	if headless {
		log.Println("✅ Client ready! Press Ctrl+C to stop.")
		<-ctx.Done()
	} else if err := runTerminal(ctx, ctrl, appConfig); err != nil {
		log.Printf("❌ Terminal UI: %v", err)
	}

	log.Println("🛑 Shutting down...")
	ctrl.Close()
	<-ctrl.Done()
	log.Println("👋 Goodbye!")
}

// runTerminal owns the screen until the player quits or ctx ends.
func runTerminal(ctx context.Context, ctrl *session.Controller, appConfig config.AppConfig) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()

	frames := func(ctx context.Context) (render.Frame, error) {
		return debug.Frame(ctx, ctrl)
	}
	ui := terminal.New(screen, ctrl, frames, terminal.ConfigFrom(appConfig))
	return ui.Run(ctx)
}

func getEnvWithDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
