package main

import (
	"log"
	"os"

	"ai-tutor-be/internal/model"
	"ai-tutor-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(dsn, false)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Step 1: Setting up extensions...")
	if err := database.EnsureExtensions(db); err != nil {
		log.Fatalf("Error: %v", err)
	}

	log.Println("Step 2: Running AutoMigrate...")
	models := []interface{}{
		&model.Conversation{},
		&model.ConversationTurn{},
		&model.QuizSession{},
		&model.VectorCollection{},
		&model.VectorPoint{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// Payload filters match on user_id and lesson_index.
	log.Println("Step 3: Creating payload indexes...")
	indexSQL := []string{
		`CREATE INDEX IF NOT EXISTS idx_vector_points_payload ON vector_points USING gin (payload jsonb_path_ops);`,
	}
	for _, sql := range indexSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute index SQL: %v", err)
		}
	}

	log.Println("✅ Success: Database migration completed successfully via GORM.")
}
