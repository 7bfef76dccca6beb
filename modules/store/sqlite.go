package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/example/chat-relay/domain/chat"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// userRecord is the users table row.
type userRecord struct {
	ID        string    `gorm:"primarykey;size:36"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for userRecord.
func (userRecord) TableName() string {
	return "users"
}

// messageRecord is the messages table row. Seq preserves insertion order for
// messages that share a timestamp.
type messageRecord struct {
	Seq          uint64    `gorm:"primarykey;autoIncrement"`
	ID           string    `gorm:"uniqueIndex;size:36;not null"`
	ChatID       int64     `gorm:"index:idx_messages_chat_created,priority:1;not null"`
	CreatedAt    time.Time `gorm:"index:idx_messages_chat_created,priority:2;not null"`
	Text         string    `gorm:"not null"`
	AuthorID     string    `gorm:"size:64;not null"`
	AuthorName   string
	AuthorAvatar string
}

// TableName returns the table name for messageRecord.
func (messageRecord) TableName() string {
	return "messages"
}

func (r messageRecord) toDomain() domain.Message {
	return domain.Message{
		ID:   r.ID,
		Text: r.Text,
		User: domain.Author{
			ID:     r.AuthorID,
			Name:   r.AuthorName,
			Avatar: r.AuthorAvatar,
		},
		CreatedAt: r.CreatedAt.UTC(),
		ChatID:    r.ChatID,
	}
}

// SQLiteStore persists users and messages with GORM on SQLite.
type SQLiteStore struct {
	db   *gorm.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and migrates the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&userRecord{}, &messageRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// CreateUser inserts a user row with a generated id.
func (s *SQLiteStore) CreateUser(ctx context.Context) (string, error) {
	rec := userRecord{ID: uuid.New().String(), CreatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return "", fmt.Errorf("failed to create user: %w", err)
	}
	return rec.ID, nil
}

// UserExists reports whether userID names a stored user.
func (s *SQLiteStore) UserExists(ctx context.Context, userID string) (bool, error) {
	var rec userRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to find user: %w", err)
	}
	return true, nil
}

// InsertMessage stores msg and sets its ID.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *domain.Message) error {
	rec := messageRecord{
		ID:           uuid.New().String(),
		ChatID:       msg.ChatID,
		CreatedAt:    msg.CreatedAt.UTC(),
		Text:         msg.Text,
		AuthorID:     msg.User.ID,
		AuthorName:   msg.User.Name,
		AuthorAvatar: msg.User.Avatar,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	msg.ID = rec.ID
	return nil
}

// FindMessages returns the room's messages sorted by created_at ascending.
func (s *SQLiteStore) FindMessages(ctx context.Context, roomID int64) ([]domain.Message, error) {
	var records []messageRecord
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", roomID).
		Order("created_at ASC").
		Order("seq ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find messages: %w", err)
	}

	result := make([]domain.Message, 0, len(records))
	for _, rec := range records {
		result = append(result, rec.toDomain())
	}
	return result, nil
}

// Ping checks the underlying connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close(_ context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
