// Package presentation связывает конвертер, хранилище и историю конвертаций.
package presentation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"slidecraft/internal/apperr"
	"slidecraft/internal/converter"
	"slidecraft/internal/logs"
	"slidecraft/internal/metrics"
	"slidecraft/internal/models"
	"slidecraft/internal/repo"
	"slidecraft/internal/storage"
)

const ContentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

type Converter interface {
	Convert(ctx context.Context, req converter.Request) (*converter.Output, error)
}

type Service struct {
	conv    Converter
	records *repo.ConversionStore
	files   storage.Provider
	now     func() time.Time
}

func NewService(conv Converter, records *repo.ConversionStore, files storage.Provider) *Service {
	return &Service{
		conv:    conv,
		records: records,
		files:   files,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Result: готовый документ. Output.Close обязателен после отдачи клиенту.
// HistoryErr != nil значит, что файл получен, но в историю не попал.
type Result struct {
	Output     *converter.Output
	Record     *models.Conversion
	HistoryErr error
}

func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	return r.Output.Close()
}

// Generate конвертирует markdown пользователя и пишет запись в историю.
// Сбой хранилища или БД после успешной конвертации не отнимает у
// пользователя документ: он возвращается вместе с HistoryErr.
func (s *Service) Generate(ctx context.Context, owner *models.User, req converter.Request) (*Result, error) {
	out, err := s.conv.Convert(ctx, req)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindValidation {
			metrics.ConversionDone(metrics.ResultFailed, 0)
		}
		return nil, err
	}
	metrics.ConversionDone(metrics.ResultOK, out.Duration.Seconds())

	res := &Result{Output: out}
	log := logs.Logger.WithFields(logrus.Fields{"user": owner.ID, "file": out.Filename})

	key := storage.Key(owner.ID, out.Filename)
	if err := s.store(ctx, key, out.Path); err != nil {
		log.WithError(err).Error("cannot store presentation")
		res.HistoryErr = err
		return res, nil
	}

	rec := &models.Conversion{
		ID:        newID(),
		UserID:    owner.ID,
		Markdown:  req.Markdown,
		Filename:  out.Filename,
		FilePath:  key,
		Timestamp: s.now(),
		Metadata: datatypes.NewJSONType(models.ConversionMetadata{
			SlideCount:     out.SlideCount,
			CharacterCount: out.CharacterCount,
			GenerationTime: out.Duration.Milliseconds(),
			ImagesCount:    out.ImagesCount,
			TemplateUsed:   out.TemplateUsed,
		}),
	}
	if err := s.records.Record(ctx, rec); err != nil {
		log.WithError(err).Error("cannot record conversion")
		res.HistoryErr = err
		if derr := s.files.Delete(ctx, key); derr != nil {
			log.WithError(derr).Warn("cannot remove unrecorded presentation")
		}
		return res, nil
	}
	res.Record = rec
	log.WithField("conversion", rec.ID).Info("conversion recorded")
	return res, nil
}

func (s *Service) store(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.files.Put(ctx, key, f, ContentType)
}

func (s *Service) History(ctx context.Context, ownerID string) ([]models.Conversion, error) {
	return s.records.ListForUser(ctx, ownerID)
}

func (s *Service) Get(ctx context.Context, id, ownerID string) (*models.Conversion, error) {
	return s.records.Get(ctx, id, ownerID)
}

// Open возвращает сохранённый файл записи владельца.
func (s *Service) Open(ctx context.Context, id, ownerID string) (*models.Conversion, *storage.Object, error) {
	rec, err := s.records.Get(ctx, id, ownerID)
	if err != nil {
		return nil, nil, err
	}
	obj, err := s.files.Get(ctx, rec.FilePath)
	if errors.Is(err, apperr.NotFound("")) {
		return nil, nil, apperr.NotFound("Presentation file not found")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open presentation %s: %w", rec.ID, err)
	}
	return rec, obj, nil
}

// newID: UUIDv7, упорядочен по времени создания.
func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
