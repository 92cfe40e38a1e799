package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"kb-chat-be/internal/entity"
	"kb-chat-be/internal/repository/specification"
	"kb-chat-be/internal/repository/unitofwork"
	"kb-chat-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
)

func TestGormConnection(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	// Verify Wiring
	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	uow := uowFactory.NewUnitOfWork(context.Background())

	assert.NotNil(t, uow.ChatSessionRepository())
	assert.NotNil(t, uow.ChatMessageRepository())
	assert.NotNil(t, uow.ChatSourceRepository())

	// Basic Ping
	sqlDB, _ := gormDB.DB()
	err = sqlDB.Ping()
	assert.NoError(t, err)
	t.Log("Successfully connected to DB and initialized UnitOfWork Factory")

	// Verify Data Access (implies columns exist)
	t.Run("Check Chat Session Repository", func(t *testing.T) {
		count, err := uow.ChatSessionRepository().Count(context.Background())
		assert.NoError(t, err)
		t.Logf("Chat session count: %d", count)
	})

	t.Run("Check Chat Message Repository", func(t *testing.T) {
		count, err := uow.ChatMessageRepository().Count(context.Background())
		assert.NoError(t, err)
		t.Logf("Chat message count: %d", count)
	})

	t.Run("Session Round Trip", func(t *testing.T) {
		ctx := context.Background()
		tx := uowFactory.NewUnitOfWork(ctx)
		assert.NoError(t, tx.Begin(ctx))
		defer tx.Rollback()

		session := &entity.ChatSession{
			Id:             uuid.New(),
			UserId:         uuid.New(),
			OrganizationId: uuid.New(),
			Status:         entity.SessionStatusActive,
			Title:          "integration test",
			LastActiveAt:   time.Now(),
			CreatedAt:      time.Now(),
		}
		assert.NoError(t, tx.ChatSessionRepository().Create(ctx, session))

		found, err := tx.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: session.Id})
		assert.NoError(t, err)
		if assert.NotNil(t, found) {
			assert.Equal(t, session.Title, found.Title)
			assert.Equal(t, entity.SessionStatusActive, found.Status)
		}
	})
}
