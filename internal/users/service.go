// Package users: учётные записи: создание, вход, правка и каскадное удаление.
package users

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"slidecraft/internal/apperr"
	"slidecraft/internal/auth"
	"slidecraft/internal/logs"
	"slidecraft/internal/metrics"
	"slidecraft/internal/models"
	"slidecraft/internal/repo"
	"slidecraft/internal/storage"
)

const (
	UsernameMin = 3
	UsernameMax = 50
	PasswordMin = 6
)

type Service struct {
	db    *gorm.DB
	users *repo.UserStore
	conv  *repo.ConversionStore
	files storage.Provider // может быть nil: файлы тогда не чистим
	now   func() time.Time
}

func NewService(db *gorm.DB, files storage.Provider) *Service {
	return &Service{
		db:    db,
		users: repo.NewUserStore(db),
		conv:  repo.NewConversionStore(db),
		files: files,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type CreateInput struct {
	Username  string
	Password  string
	Role      string // пусто: employee
	CreatedBy string // id админа; пусто для bootstrap
}

func validateUsername(name string) error {
	if n := utf8.RuneCountInString(name); n < UsernameMin || n > UsernameMax {
		return apperr.Validation("Username must be between 3 and 50 characters")
	}
	return nil
}

func validatePassword(pw string) error {
	if utf8.RuneCountInString(pw) < PasswordMin {
		return apperr.Validation("Password must be at least 6 characters")
	}
	if err := auth.ValidatePasswordLength(pw); err != nil {
		return apperr.Validation("Password must be at most 72 bytes")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		return nil, apperr.Validation("Username and password are required")
	}
	if err := validateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = models.RoleEmployee
	}
	if !models.ValidRole(in.Role) {
		return nil, apperr.Validation("Invalid role. Must be admin or employee")
	}

	taken, err := s.users.UsernameTaken(ctx, in.Username, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.DuplicateUser("Username already exists")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		PasswordHash: hash,
		Role:         in.Role,
	}
	if in.CreatedBy != "" {
		by := in.CreatedBy
		u.CreatedBy = &by
	}
	// уникальный индекс ловит гонку между проверкой и вставкой
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	logs.Logger.WithFields(logrus.Fields{"user": u.ID, "username": u.Username, "role": u.Role}).Info("user created")
	return u, nil
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// сравнение с фиктивным хэшем выравнивает время ответа для несуществующих имён
func compareDummy(password string) {
	dummyOnce.Do(func() { dummyHash, _ = auth.HashPassword("slidecraft-dummy-password") })
	auth.CheckPassword(dummyHash, password)
}

func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	invalid := apperr.Unauthorized("Invalid credentials", apperr.ErrInvalidCredentials)

	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, apperr.NotFound("")) {
		compareDummy(password)
		metrics.Login(false)
		logs.Logger.WithField("username", username).Warn("login failed: unknown user")
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		metrics.Login(false)
		logs.Logger.WithField("username", username).Warn("login failed: bad password")
		return nil, invalid
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		logs.Logger.WithError(err).WithField("user", u.ID).Warn("cannot update last login")
	} else {
		u.LastLogin = &now
	}
	metrics.Login(true)
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

type UpdateInput struct {
	Username string // пусто: не менять
	Role     string // пусто: не менять
}

// Update меняет имя и/или роль. Свою роль менять нельзя.
func (s *Service) Update(ctx context.Context, actorID, id string, in UpdateInput) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Role != "" && in.Role != u.Role {
		if u.ID == actorID {
			return nil, apperr.InvalidOperation("Cannot change your own role")
		}
		if !models.ValidRole(in.Role) {
			return nil, apperr.Validation("Invalid role. Must be admin or employee")
		}
		u.Role = in.Role
	}
	if name := strings.TrimSpace(in.Username); name != "" && name != u.Username {
		if err := validateUsername(name); err != nil {
			return nil, err
		}
		taken, err := s.users.UsernameTaken(ctx, name, u.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperr.DuplicateUser("Username already exists")
		}
		u.Username = name
	}
	if err := s.users.UpdateProfile(ctx, u.ID, u.Username, u.Role); err != nil {
		return nil, err
	}
	return u, nil
}

// Delete удаляет пользователя вместе с его презентациями. Себя удалить нельзя.
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.ID == actorID {
		return apperr.InvalidOperation("Cannot delete your own account")
	}

	var keys []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		// сначала записи, затем сам пользователь
		if keys, err = s.conv.WithTx(tx).DeleteAllForUser(ctx, u.ID); err != nil {
			return err
		}
		return s.users.WithTx(tx).Delete(ctx, u.ID)
	})
	if err != nil {
		return err
	}

	log := logs.Logger.WithFields(logrus.Fields{"user": u.ID, "username": u.Username, "presentations": len(keys)})
	log.Info("user deleted")
	if s.files != nil {
		for _, k := range keys {
			if err := s.files.Delete(ctx, k); err != nil {
				log.WithError(err).WithField("key", k).Warn("cannot remove stored presentation")
			}
		}
	}
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, id, newPassword string) error {
	if newPassword == "" {
		return apperr.Validation("New password is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.users.SetPasswordHash(ctx, id, hash)
}

// UserWithCount: строка списка в админке.
type UserWithCount struct {
	models.User
	PresentationCount int64 `json:"presentationCount"`
}

func (s *Service) ListWithCounts(ctx context.Context) ([]UserWithCount, error) {
	list, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.conv.CountsByUser(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserWithCount, 0, len(list))
	for _, u := range list {
		out = append(out, UserWithCount{User: u, PresentationCount: counts[u.ID]})
	}
	return out, nil
}

type Stats struct {
	TotalUsers          int64 `json:"totalUsers"`
	TotalAdmins         int64 `json:"totalAdmins"`
	TotalEmployees      int64 `json:"totalEmployees"`
	TotalPresentations  int64 `json:"totalPresentations"`
	RecentPresentations int64 `json:"recentPresentations"` // за 7 дней
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	var err error
	if st.TotalUsers, err = s.users.Count(ctx); err != nil {
		return nil, err
	}
	if st.TotalAdmins, err = s.users.CountByRole(ctx, models.RoleAdmin); err != nil {
		return nil, err
	}
	if st.TotalEmployees, err = s.users.CountByRole(ctx, models.RoleEmployee); err != nil {
		return nil, err
	}
	if st.TotalPresentations, err = s.conv.Count(ctx); err != nil {
		return nil, err
	}
	if st.RecentPresentations, err = s.conv.CountSince(ctx, s.now().AddDate(0, 0, -7)); err != nil {
		return nil, err
	}
	return &st, nil
}
