package storage

import (
	"context"
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store persists support requests and replies in Postgres.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the request/reply tables.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.AutoMigrate(&SupportRequest{}, &SupportReply{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	log.Printf("Database schema migrated.")

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing gorm handle. Intended for tests.
func NewWithDB(db *gorm.DB) *Store {
	return &Store{db: db}
}

// SaveRequest inserts a completed support request and fills in its id.
func (s *Store) SaveRequest(ctx context.Context, req *SupportRequest) error {
	if req == nil {
		return fmt.Errorf("request is nil")
	}
	if err := s.db.WithContext(ctx).Create(req).Error; err != nil {
		return fmt.Errorf("failed to save support request for user %d: %w", req.UserID, err)
	}
	return nil
}

// SaveReply appends an admin reply record.
func (s *Store) SaveReply(ctx context.Context, reply *SupportReply) error {
	if reply == nil {
		return fmt.Errorf("reply is nil")
	}
	if err := s.db.WithContext(ctx).Create(reply).Error; err != nil {
		return fmt.Errorf("failed to save reply to request %d: %w", reply.RequestID, err)
	}
	return nil
}

// Ping verifies database connectivity for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to obtain sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
