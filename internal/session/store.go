// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/wingedpig/conduit/internal/history"
	"github.com/wingedpig/conduit/internal/runner"
	"github.com/wingedpig/conduit/internal/stream"
)

// ErrNotFound means the referenced session is not in the index.
var ErrNotFound = errors.New("session not found")

// Store is the SQLite-backed conversation index.
type Store struct {
	db *gorm.DB
}

// Store implements the runner's persistence sink.
var _ runner.Sink = (*Store)(nil)

// gormLogger routes GORM output through the standard logger, errors
// and slow queries only.
type gormLogger struct {
	level logger.LogLevel
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{level: level}
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		log.Printf("session: "+msg, data...)
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		log.Printf("session: "+msg, data...)
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		log.Printf("session: "+msg, data...)
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("session: query error: %v (sql=%s rows=%d)", err, sql, rows)
	} else if elapsed > 200*time.Millisecond {
		log.Printf("session: slow query: %s (%s, rows=%d)", sql, elapsed, rows)
	}
}

// NewStore opens (creating if needed) the index database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if strings.HasPrefix(dbPath, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger:  (&gormLogger{}).LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL for concurrent reads during writes.
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	db.Exec("PRAGMA synchronous=NORMAL")

	if err := db.AutoMigrate(&ProjectModel{}, &SessionModel{}, &TurnModel{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SyncProjects upserts the discovered projects. Projects no longer on
// disk are left in place; archival state must survive rescans.
func (s *Store) SyncProjects(projects []history.Project) error {
	if len(projects) == 0 {
		return nil
	}
	models := make([]ProjectModel, 0, len(projects))
	for _, p := range projects {
		models = append(models, ProjectModel{
			ID:           p.ID,
			Name:         p.Name,
			Path:         p.Path,
			Provider:     string(p.Provider),
			EncodedName:  p.EncodedName,
			SessionCount: p.SessionCount,
			LastModified: p.LastModified,
		})
	}
	return s.retryBusy(func() error {
		return s.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "path", "provider", "encoded_name",
				"session_count", "last_modified", "updated_at",
			}),
		}).Create(&models).Error
	})
}

// SyncSessions upserts the discovered session summaries of one
// project. IsArchived is deliberately not in the update set.
func (s *Store) SyncSessions(projectID string, sums []history.Summary) error {
	if len(sums) == 0 {
		return nil
	}
	models := make([]SessionModel, 0, len(sums))
	for _, sum := range sums {
		models = append(models, SessionModel{
			ID:           sum.SessionID,
			ProjectID:    projectID,
			Provider:     string(sum.Provider),
			FilePath:     sum.FilePath,
			Preview:      sum.Preview,
			MessageCount: sum.MessageCount,
			StartTime:    sum.StartTime,
			LastTime:     sum.LastTime,
		})
	}
	return s.retryBusy(func() error {
		return s.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"project_id", "provider", "file_path", "preview",
				"message_count", "start_time", "last_time", "updated_at",
			}),
		}).Create(&models).Error
	})
}

// ListProjects returns all indexed projects, most recently modified
// first.
func (s *Store) ListProjects() ([]ProjectModel, error) {
	var out []ProjectModel
	err := s.db.Order("last_modified DESC").Find(&out).Error
	return out, err
}

// ListSessions returns one project's sessions, newest activity first.
func (s *Store) ListSessions(projectID string, includeArchived bool) ([]SessionModel, error) {
	q := s.db.Where("project_id = ?", projectID)
	if !includeArchived {
		q = q.Where("is_archived = ?", false)
	}
	var out []SessionModel
	err := q.Order("last_time DESC").Find(&out).Error
	return out, err
}

// GetSession returns one session by id.
func (s *Store) GetSession(sessionID string) (SessionModel, error) {
	var m SessionModel
	err := s.db.First(&m, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return SessionModel{}, ErrNotFound
	}
	return m, err
}

// SetArchived flips a session's archived flag.
func (s *Store) SetArchived(sessionID string, archived bool) error {
	updates := map[string]interface{}{"is_archived": archived}
	if archived {
		now := time.Now().UTC()
		updates["archived_at"] = &now
	} else {
		updates["archived_at"] = nil
	}
	return s.retryBusy(func() error {
		res := s.db.Model(&SessionModel{}).Where("id = ?", sessionID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Delete removes a session and its recorded turns from the index. The
// on-disk transcript is not touched.
func (s *Store) Delete(sessionID string) error {
	return s.retryBusy(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			res := tx.Delete(&SessionModel{}, "id = ?", sessionID)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrNotFound
			}
			return tx.Delete(&TurnModel{}, "session_id = ?", sessionID).Error
		})
	})
}

// Search matches sessions whose preview or id contains q,
// case-insensitive, newest first.
func (s *Store) Search(q string, limit int) ([]SessionModel, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + escapeLike(q) + "%"
	var out []SessionModel
	err := s.db.
		Where("preview LIKE ? ESCAPE '\\' OR id LIKE ? ESCAPE '\\'", pattern, pattern).
		Order("last_time DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// RecordTurn persists a finished request: the prompt as the user turn
// and the concatenated text output as the assistant turn.
func (s *Store) RecordTurn(req runner.Request, evs []stream.Event) error {
	var text strings.Builder
	for _, ev := range evs {
		if ev.Type == stream.EventText {
			text.WriteString(ev.Text)
		}
	}

	now := time.Now().UTC()
	rows := []TurnModel{{
		RequestID: req.ID,
		SessionID: req.SessionID,
		ProjectID: req.ProjectID,
		Provider:  string(req.Provider),
		Role:      "user",
		Content:   req.Prompt,
		Status:    string(req.Status),
		CreatedAt: req.StartedAt,
	}}
	if text.Len() > 0 {
		rows = append(rows, TurnModel{
			RequestID: req.ID,
			SessionID: req.SessionID,
			ProjectID: req.ProjectID,
			Provider:  string(req.Provider),
			Role:      "assistant",
			Content:   text.String(),
			Status:    string(req.Status),
			CreatedAt: now,
		})
	}
	return s.retryBusy(func() error {
		return s.db.Create(&rows).Error
	})
}

// Turns returns the recorded turns of one session in order.
func (s *Store) Turns(sessionID string) ([]TurnModel, error) {
	var out []TurnModel
	err := s.db.Where("session_id = ?", sessionID).Order("id ASC").Find(&out).Error
	return out, err
}

// retryBusy retries writes that lose the race for the database lock.
func (s *Store) retryBusy(fn func() error) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		var sqliteErr sqlite3.Error
		if !errors.As(err, &sqliteErr) ||
			(sqliteErr.Code != sqlite3.ErrBusy && sqliteErr.Code != sqlite3.ErrLocked) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	return err
}

// escapeLike escapes LIKE metacharacters in user input.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
