package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-tutor-be/internal/bootstrap"
	"ai-tutor-be/internal/config"
	"ai-tutor-be/internal/server"
	"ai-tutor-be/internal/tracer"
	"ai-tutor-be/pkg/database"

	"gorm.io/gorm"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database when a backend needs it
	var gormDB *gorm.DB
	if cfg.Tutor.ConversationBackend == "postgres" || cfg.Tutor.SemanticBackend == "pgvector" {
		var err error
		gormDB, err = database.NewGormDBFromDSN(cfg.Database.Connection, cfg.App.Environment == "production")
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
	}

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(gormDB, cfg, bootstrap.Options{})
	if err != nil {
		log.Panicf("Unable to bootstrap: %v", err)
	}
	defer container.Close()
	defer container.Logger.Sync()

	// Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer(cfg.Tracing, cfg.App.Environment, container.Logger)
	defer shutdownTracer(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Start Background Services
	go func() {
		container.Logger.Info("INGEST", "Starting reference consumer", nil)
		if err := container.ConsumerService.Consume(ctx); err != nil {
			container.Logger.Error("INGEST", "Reference consumer stopped", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	// 5. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown()
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		container.Logger.Error("HTTP", "Server stopped", map[string]interface{}{"error": err.Error()})
	}
}
