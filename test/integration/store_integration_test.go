package integration

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"docchat-be/internal/entity"
	"docchat-be/internal/model"
	"docchat-be/internal/repository/contract"
	"docchat-be/internal/repository/specification"
	"docchat-be/internal/repository/unitofwork"
	"docchat-be/internal/service"
	"docchat-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type StoreSuite struct {
	suite.Suite
	db         *gorm.DB
	uowFactory unitofwork.RepositoryFactory
	ctx        context.Context
}

func TestStoreSuite(t *testing.T) {
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}
	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, false)
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`).Error)
	require.NoError(t, db.AutoMigrate(
		&model.Document{}, &model.DocumentChunk{}, &model.DocumentSummary{},
		&model.ChatSession{}, &model.ChatMessage{},
	))

	suite.Run(t, &StoreSuite{db: db, uowFactory: unitofwork.NewRepositoryFactory(db), ctx: context.Background()})
}

func (s *StoreSuite) TearDownSuite() {
	_ = database.Close(s.db)
}

func (s *StoreSuite) newSession() *entity.ChatSession {
	session := &entity.ChatSession{Id: uuid.New(), Title: "integration", LastActivityAt: time.Now()}
	s.Require().NoError(s.uowFactory.NewUnitOfWork(s.ctx).ChatSessionRepository().Create(s.ctx, session))
	return session
}

func (s *StoreSuite) TestMessagesAreReturnedChronologically() {
	session := s.newSession()
	messages := s.uowFactory.NewUnitOfWork(s.ctx).ChatMessageRepository()

	base := time.Now().Add(-time.Minute)
	for i, content := range []string{"one", "two", "three", "four"} {
		s.Require().NoError(messages.Create(s.ctx, &entity.ChatMessage{
			ChatSessionId: session.Id,
			Role:          entity.RoleUser,
			Content:       content,
			CreatedAt:     base.Add(time.Duration(i) * time.Second),
		}))
	}

	recent, err := messages.FindRecent(s.ctx, session.Id, 2)
	s.Require().NoError(err)
	s.Require().Len(recent, 2)
	s.Equal("three", recent[0].Content)
	s.Equal("four", recent[1].Content)
}

func (s *StoreSuite) TestStatsAndUsage() {
	session := s.newSession()
	uow := s.uowFactory.NewUnitOfWork(s.ctx)
	messages := uow.ChatMessageRepository()

	s.Require().NoError(messages.Create(s.ctx, &entity.ChatMessage{ChatSessionId: session.Id, Role: entity.RoleUser, Content: "q"}))
	s.Require().NoError(messages.Create(s.ctx, &entity.ChatMessage{
		ChatSessionId: session.Id, Role: entity.RoleAssistant, Content: "a",
		Metadata: entity.MessageMetadata{TotalTokens: 120, CostUSD: 0.002, LatencyMs: 300},
	}))
	s.Require().NoError(messages.Create(s.ctx, &entity.ChatMessage{
		ChatSessionId: session.Id, Role: entity.RoleAssistant, Content: "a",
		Metadata: entity.MessageMetadata{TotalTokens: 40, Cached: true, LatencyMs: 100},
	}))

	stats, err := messages.Stats(s.ctx, session.Id)
	s.Require().NoError(err)
	s.EqualValues(3, stats.MessageCount)
	s.EqualValues(160, stats.TotalTokens)
	s.InDelta(0.5, stats.CacheHitRate(), 1e-9)
	s.InDelta(200, stats.AvgLatencyMs, 1e-9)

	s.Require().NoError(uow.ChatSessionRepository().AddUsage(s.ctx, session.Id, 0.002, 120, time.Now()))
	s.Require().NoError(uow.ChatSessionRepository().AddUsage(s.ctx, session.Id, 0.001, 30, time.Now()))

	stored, err := uow.ChatSessionRepository().FindOne(s.ctx, specification.ByID{ID: session.Id})
	s.Require().NoError(err)
	s.Require().NotNil(stored)
	s.InDelta(0.003, stored.TotalCostUSD, 1e-9)
	s.Equal(150, stored.TotalTokens)
}

func (s *StoreSuite) TestDeleteRemovesMessagesAndReportsMissing() {
	session := s.newSession()
	uow := s.uowFactory.NewUnitOfWork(s.ctx)
	s.Require().NoError(uow.ChatMessageRepository().Create(s.ctx, &entity.ChatMessage{ChatSessionId: session.Id, Role: entity.RoleUser, Content: "q"}))

	s.Require().NoError(uow.ChatMessageRepository().DeleteByChatSessionId(s.ctx, session.Id))
	s.Require().NoError(uow.ChatSessionRepository().Delete(s.ctx, session.Id))

	var remaining int64
	s.Require().NoError(s.db.Model(&model.ChatMessage{}).Where("chat_session_id = ?", session.Id).Count(&remaining).Error)
	s.Zero(remaining)

	err := uow.ChatSessionRepository().Delete(s.ctx, session.Id)
	s.ErrorIs(err, contract.ErrSessionNotFound)
}

func (s *StoreSuite) TestDeleteIdleBefore() {
	stale := &entity.ChatSession{Id: uuid.New(), Title: "stale", LastActivityAt: time.Now().Add(-48 * time.Hour)}
	fresh := s.newSession()
	sessions := s.uowFactory.NewUnitOfWork(s.ctx).ChatSessionRepository()
	s.Require().NoError(sessions.Create(s.ctx, stale))

	removed, err := sessions.DeleteIdleBefore(s.ctx, time.Now().Add(-24*time.Hour))
	s.Require().NoError(err)
	s.GreaterOrEqual(removed, int64(1))

	gone, err := sessions.FindOne(s.ctx, specification.ByID{ID: stale.Id})
	s.Require().NoError(err)
	s.Nil(gone)
	kept, err := sessions.FindOne(s.ctx, specification.ByID{ID: fresh.Id})
	s.Require().NoError(err)
	s.NotNil(kept)
}

func (s *StoreSuite) TestVectorSearchOrdersBySimilarity() {
	doc := model.Document{Id: uuid.New(), Title: "Vector handbook"}
	s.Require().NoError(s.db.Create(&doc).Error)

	near := unitVector(0)
	far := unitVector(1)
	s.Require().NoError(s.db.Create(&[]model.DocumentChunk{
		{DocumentId: doc.Id, Content: "far", ChunkIndex: 1, Embedding: pgvector.NewVector(far)},
		{DocumentId: doc.Id, Content: "near", ChunkIndex: 0, Embedding: pgvector.NewVector(near)},
	}).Error)
	s.Require().NoError(s.db.Create(&model.DocumentSummary{DocumentId: doc.Id, Summary: "about vectors", Embedding: pgvector.NewVector(near)}).Error)

	docs := s.uowFactory.NewUnitOfWork(s.ctx).DocumentRepository()

	chunks, err := docs.SearchChunks(s.ctx, doc.Id.String(), near, 5)
	s.Require().NoError(err)
	s.Require().Len(chunks, 2)
	s.Equal("near", chunks[0].Content)
	s.Equal("Vector handbook", chunks[0].DocumentTitle)
	s.InDelta(1.0, chunks[0].Similarity, 1e-6)
	s.InDelta(0.0, chunks[1].Similarity, 1e-6)

	summaries, err := docs.GetSummaries(s.ctx, []string{doc.Id.String(), "not-a-uuid"})
	s.Require().NoError(err)
	s.Require().Len(summaries, 1)
	s.Equal("about vectors", summaries[0].Text)

	exists, err := docs.Exists(s.ctx, doc.Id.String())
	s.Require().NoError(err)
	s.True(exists)
}

func (s *StoreSuite) TestUserMessageIsNotKeptWhenSessionTouchFails() {
	session := s.newSession()

	const hook = "integration:fail_session_touch"
	s.Require().NoError(s.db.Callback().Update().Before("gorm:update").Register(hook, func(tx *gorm.DB) {
		if tx.Statement.Table == "chat_sessions" {
			_ = tx.AddError(errors.New("session touch failed"))
		}
	}))
	defer func() { _ = s.db.Callback().Update().Remove(hook) }()

	conversations := service.NewConversationStore(s.uowFactory)
	err := conversations.SaveUserMessage(s.ctx, session.Id.String(), "lost?", nil)
	s.Require().Error(err)

	count, err := s.uowFactory.NewUnitOfWork(s.ctx).ChatMessageRepository().
		Count(s.ctx, specification.ByChatSessionID{ChatSessionID: session.Id})
	s.Require().NoError(err)
	s.Zero(count, "the user message must roll back with the failed touch")
}

func unitVector(axis int) []float32 {
	v := make([]float32, 768)
	v[axis] = 1
	return v
}

