package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-assistant-be/internal/bootstrap"
	"ai-assistant-be/internal/config"
	"ai-assistant-be/internal/server"
	"ai-assistant-be/internal/tracer"
	"ai-assistant-be/pkg/database"

	gormLogger "gorm.io/gorm/logger"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// Tracer is a no-op unless OTEL_ENABLED=true
	shutdownTracer := tracer.InitTracer(tracer.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "ai-assistant-backend",
		Environment: cfg.App.Environment,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	defer shutdownTracer(context.Background())

	// 2. Initialize Database
	dbOpts := database.DefaultOptions()
	if cfg.App.Environment != "production" {
		dbOpts.LogLevel = gormLogger.Info
	}
	gormDB, err := database.Open(cfg.Database.Connection, dbOpts)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Close()

	// 4. Start Background Services
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := container.StartBackground(ctx); err != nil {
		log.Printf("Background services failed to start: %v", err)
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		container.WebSocketHub.Shutdown()
		if err := srv.Shutdown(); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
