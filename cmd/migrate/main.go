package main

import (
	"log"
	"os"

	"ai-assistant-be/internal/model"
	"ai-assistant-be/pkg/database"

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

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	// 2. Extensions (vector columns need pgvector before AutoMigrate)
	log.Println("Step 1: Setting up Extensions...")
	setupSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE EXTENSION IF NOT EXISTS vector;`,
	}
	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Fatalf("Error: Failed to execute setup SQL: %v", err)
		}
	}

	// 3. AutoMigrate
	log.Println("Step 2: Running AutoMigrate...")
	models := []interface{}{
		&model.PageDestination{},
		&model.SectionDestination{},
		&model.KnowledgePassage{},
		&model.AiProvider{},
		&model.AiModel{},
		&model.AiPersona{},
		&model.UserAccessState{},
		&model.Conversation{},
		&model.ConversationMessage{},
		&model.ConversationCheckpoint{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// 4. Vector indexes. HNSW with cosine ops matches the <=> queries.
	log.Println("Step 3: Creating vector indexes...")
	postMigrationSQL := []string{
		`CREATE INDEX IF NOT EXISTS idx_page_destinations_embedding ON page_destinations USING hnsw (embedding_value vector_cosine_ops);`,
		`CREATE INDEX IF NOT EXISTS idx_section_destinations_embedding ON section_destinations USING hnsw (embedding_value vector_cosine_ops);`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_passages_embedding ON knowledge_passages USING hnsw (embedding_value vector_cosine_ops);`,
	}
	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	log.Println("✅ Success: Database migration completed successfully via GORM.")
}
