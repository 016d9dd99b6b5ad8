package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"readit/pkg/domain"
)

const migrateLockID int64 = 42814281

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&SessionModel{}, &BookmarkModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateSession stores a new reading session.
func (s *GormStore) CreateSession(session domain.ReadingSession) error {
	model, err := sessionToModel(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.db.Create(&model).Error
}

// GetSession retrieves a session and refreshes its last_accessed timestamp.
func (s *GormStore) GetSession(id string) (domain.ReadingSession, bool, error) {
	var model SessionModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.ReadingSession{}, false, nil
		}
		return domain.ReadingSession{}, false, err
	}
	now := time.Now().UTC()
	if err := s.db.Model(&SessionModel{}).Where("id = ?", id).
		Update("last_accessed", now).Error; err != nil {
		return domain.ReadingSession{}, false, err
	}
	model.LastAccessed = now
	session, err := sessionFromModel(model)
	if err != nil {
		return domain.ReadingSession{}, false, fmt.Errorf("decode session: %w", err)
	}
	return session, true, nil
}

// UpdateSession applies column updates to one session row. It reports false
// when the session does not exist.
func (s *GormStore) UpdateSession(id string, updates map[string]any) (bool, error) {
	if len(updates) == 0 {
		return false, nil
	}
	encoded, err := encodeUpdates(updates)
	if err != nil {
		return false, err
	}
	tx := s.db.Model(&SessionModel{}).Where("id = ?", id).Updates(encoded)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// encodeUpdates converts JSON-column values to their storage representation.
func encodeUpdates(updates map[string]any) (map[string]any, error) {
	encoded := make(map[string]any, len(updates))
	for column, value := range updates {
		if column == "cached_audio" || column == "segments" {
			raw, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", column, err)
			}
			encoded[column] = datatypes.JSON(raw)
			continue
		}
		encoded[column] = value
	}
	return encoded, nil
}

// PurgeSessionsBefore deletes sessions whose last_accessed is strictly older
// than cutoff and reports how many were removed.
func (s *GormStore) PurgeSessionsBefore(cutoff time.Time) (int64, error) {
	tx := s.db.Where("last_accessed < ?", cutoff).Delete(&SessionModel{})
	return tx.RowsAffected, tx.Error
}

// SaveBookmark stores a bookmark.
func (s *GormStore) SaveBookmark(b domain.Bookmark) error {
	model := bookmarkToModel(b)
	return s.db.Create(&model).Error
}

// ListBookmarks returns a session's bookmarks in insertion order.
func (s *GormStore) ListBookmarks(sessionID string) ([]domain.Bookmark, error) {
	var models []BookmarkModel
	if err := s.db.Where("session_id = ?", sessionID).
		Order("seq ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Bookmark, 0, len(models))
	for _, m := range models {
		res = append(res, bookmarkFromModel(m))
	}
	return res, nil
}

// DeleteBookmark removes a bookmark. Deleting an unknown id is not an error.
func (s *GormStore) DeleteBookmark(id string) error {
	return s.db.Delete(&BookmarkModel{}, "id = ?", id).Error
}
