package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"edhub/internal/adapters/persistence/models"
)

// watchHistoryRepository implements WatchHistoryRepository interface
type watchHistoryRepository struct {
	db *gorm.DB
}

// NewWatchHistoryRepository creates a new watch history repository
func NewWatchHistoryRepository(db *gorm.DB) WatchHistoryRepository {
	return &watchHistoryRepository{db: db}
}

// RecordWatch upserts the (student, lesson) row and bumps the counter
// atomically, so concurrent views never lose an increment.
func (r *watchHistoryRepository) RecordWatch(ctx context.Context, studentID, lessonID uint, at time.Time) error {
	row := models.WatchHistory{
		StudentID:     studentID,
		LessonID:      lessonID,
		WatchCount:    1,
		LastWatchedAt: at,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "student_id"}, {Name: "lesson_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"watch_count":     gorm.Expr("watch_count + 1"),
			"last_watched_at": at,
		}),
	}).Create(&row).Error
}

// ListByStudent lists a student's watch history, most recent first
func (r *watchHistoryRepository) ListByStudent(ctx context.Context, studentID uint) ([]*models.WatchHistory, error) {
	var rows []*models.WatchHistory
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("last_watched_at DESC").
		Find(&rows).Error
	return rows, err
}
