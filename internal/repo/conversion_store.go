package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"slidecraft/internal/apperr"
	"slidecraft/internal/models"
)

// listColumns: всё, кроме тела markdown (экономим трафик в списках).
var listColumns = []string{"id", "user_id", "filename", "file_path", "timestamp", "metadata"}

type ConversionStore struct{ db *gorm.DB }

func NewConversionStore(db *gorm.DB) *ConversionStore { return &ConversionStore{db: db} }

func (s *ConversionStore) WithTx(tx *gorm.DB) *ConversionStore { return &ConversionStore{db: tx} }

// Record добавляет запись. Пути обновления нет.
func (s *ConversionStore) Record(ctx context.Context, c *models.Conversion) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("record conversion: %w", err)
	}
	return nil
}

// ListForUser: записи владельца, новые первыми, без markdown.
func (s *ConversionStore) ListForUser(ctx context.Context, ownerID string) ([]models.Conversion, error) {
	var rows []models.Conversion
	err := s.db.WithContext(ctx).
		Select(listColumns).
		Where("user_id = ?", ownerID).
		Order("timestamp desc, id desc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list conversions: %w", err)
	}
	if rows == nil {
		rows = []models.Conversion{}
	}
	return rows, nil
}

// Get возвращает запись только владельцу; чужая запись неотличима от
// отсутствующей.
func (s *ConversionStore) Get(ctx context.Context, id, ownerID string) (*models.Conversion, error) {
	var c models.Conversion
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Conversion not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get conversion %s: %w", id, err)
	}
	return &c, nil
}

// DeleteAllForUser удаляет записи владельца и возвращает ключи их файлов.
func (s *ConversionStore) DeleteAllForUser(ctx context.Context, ownerID string) ([]string, error) {
	var keys []string
	tx := s.db.WithContext(ctx)
	if err := tx.Model(&models.Conversion{}).Where("user_id = ?", ownerID).Pluck("file_path", &keys).Error; err != nil {
		return nil, fmt.Errorf("collect conversion files: %w", err)
	}
	if err := tx.Where("user_id = ?", ownerID).Delete(&models.Conversion{}).Error; err != nil {
		return nil, fmt.Errorf("delete conversions: %w", err)
	}
	return keys, nil
}

// CountsByUser: число презентаций по каждому владельцу.
func (s *ConversionStore) CountsByUser(ctx context.Context) (map[string]int64, error) {
	type row struct {
		UserID string
		N      int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.Conversion{}).
		Select("user_id, count(*) as n").
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count conversions by user: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.UserID] = r.N
	}
	return out, nil
}

func (s *ConversionStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Conversion{}).Count(&n).Error
	return n, err
}

func (s *ConversionStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Conversion{}).Where("timestamp >= ?", since).Count(&n).Error
	return n, err
}
