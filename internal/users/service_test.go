package users

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"slidecraft/internal/apperr"
	"slidecraft/internal/db/dbtest"
	"slidecraft/internal/models"
	"slidecraft/internal/repo"
	"slidecraft/internal/storage"
)

func newService(t *testing.T) (*Service, *repo.ConversionStore, storage.Provider) {
	t.Helper()
	d := dbtest.New(t)
	files, err := storage.NewLocalProvider(t.TempDir())
	require.NoError(t, err)
	return NewService(d, files), repo.NewConversionStore(d), files
}

func TestCreate_Validation(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()

	cases := []CreateInput{
		{Username: "ab", Password: "secret1"},
		{Username: strings.Repeat("a", 51), Password: "secret1"},
		{Username: "alice", Password: "12345"},
		{Username: "alice", Password: "secret1", Role: "root"},
		{Username: "", Password: "secret1"},
	}
	for _, in := range cases {
		_, err := s.Create(ctx, in)
		require.ErrorIs(t, err, apperr.Validation(""), "%+v", in)
	}
}

func TestCreate_ExactlyOnce(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()

	u, err := s.Create(ctx, CreateInput{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, models.RoleEmployee, u.Role)
	require.NotEqual(t, "secret1", u.PasswordHash)

	_, err = s.Create(ctx, CreateInput{Username: "alice", Password: "another1", Role: models.RoleAdmin})
	require.ErrorIs(t, err, apperr.DuplicateUser(""))
	require.Equal(t, 400, apperr.KindOf(err).Status())
}

func TestAuthenticate(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, CreateInput{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	u, err := s.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)
	require.NotNil(t, u.LastLogin)

	_, err = s.Authenticate(ctx, "alice", "wrong-pw")
	require.ErrorIs(t, err, apperr.ErrInvalidCredentials)

	_, err = s.Authenticate(ctx, "nobody", "secret1")
	require.ErrorIs(t, err, apperr.ErrInvalidCredentials)
}

func TestUpdate_SelfRoleChangeRejected(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()

	admin, err := s.Create(ctx, CreateInput{Username: "root", Password: "secret1", Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = s.Update(ctx, admin.ID, admin.ID, UpdateInput{Role: models.RoleEmployee})
	require.ErrorIs(t, err, apperr.InvalidOperation("Cannot change your own role"))

	// имя себе менять можно
	u, err := s.Update(ctx, admin.ID, admin.ID, UpdateInput{Username: "rooty", Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, "rooty", u.Username)
}

func TestUpdate_DuplicateAndNotFound(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()

	admin, err := s.Create(ctx, CreateInput{Username: "root", Password: "secret1", Role: models.RoleAdmin})
	require.NoError(t, err)
	bob, err := s.Create(ctx, CreateInput{Username: "bob", Password: "secret1"})
	require.NoError(t, err)

	_, err = s.Update(ctx, admin.ID, bob.ID, UpdateInput{Username: "root"})
	require.ErrorIs(t, err, apperr.DuplicateUser(""))

	u, err := s.Update(ctx, admin.ID, bob.ID, UpdateInput{Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, u.Role)

	_, err = s.Update(ctx, admin.ID, uuid.NewString(), UpdateInput{Username: "ghost"})
	require.ErrorIs(t, err, apperr.NotFound(""))
}

func TestDelete_CascadesAndIsolates(t *testing.T) {
	s, conv, files := newService(t)
	ctx := context.Background()

	admin, err := s.Create(ctx, CreateInput{Username: "root", Password: "secret1", Role: models.RoleAdmin})
	require.NoError(t, err)
	gone, err := s.Create(ctx, CreateInput{Username: "gone", Password: "secret1"})
	require.NoError(t, err)
	stays, err := s.Create(ctx, CreateInput{Username: "stays", Password: "secret1"})
	require.NoError(t, err)

	add := func(owner string) string {
		key := storage.Key(owner, uuid.NewString()+".pptx")
		require.NoError(t, files.Put(ctx, key, bytes.NewReader([]byte("pptx")), "application/octet-stream"))
		require.NoError(t, conv.Record(ctx, &models.Conversion{
			ID: uuid.NewString(), UserID: owner, Markdown: "## A", Filename: "p.pptx",
			FilePath: key, Timestamp: time.Now().UTC(),
			Metadata: datatypes.NewJSONType(models.ConversionMetadata{SlideCount: 1}),
		}))
		return key
	}
	goneKeys := []string{add(gone.ID), add(gone.ID)}
	stayKey := add(stays.ID)

	require.ErrorIs(t, s.Delete(ctx, admin.ID, admin.ID), apperr.InvalidOperation(""))
	require.NoError(t, s.Delete(ctx, admin.ID, gone.ID))
	require.ErrorIs(t, s.Delete(ctx, admin.ID, gone.ID), apperr.NotFound(""))

	rows, err := conv.ListForUser(ctx, gone.ID)
	require.NoError(t, err)
	require.Empty(t, rows)
	rows, err = conv.ListForUser(ctx, stays.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	for _, k := range goneKeys {
		_, err := files.Get(ctx, k)
		require.ErrorIs(t, err, apperr.NotFound(""))
	}
	obj, err := files.Get(ctx, stayKey)
	require.NoError(t, err)
	require.NoError(t, obj.Body.Close())
}

func TestChangePasswordAndStats(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()

	u, err := s.Create(ctx, CreateInput{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	_, err = s.Create(ctx, CreateInput{Username: "root", Password: "secret1", Role: models.RoleAdmin})
	require.NoError(t, err)

	require.ErrorIs(t, s.ChangePassword(ctx, u.ID, "123"), apperr.Validation(""))
	require.ErrorIs(t, s.ChangePassword(ctx, uuid.NewString(), "newsecret"), apperr.NotFound(""))
	require.NoError(t, s.ChangePassword(ctx, u.ID, "newsecret"))
	_, err = s.Authenticate(ctx, "alice", "newsecret")
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, st.TotalUsers)
	require.EqualValues(t, 1, st.TotalAdmins)
	require.EqualValues(t, 1, st.TotalEmployees)
	require.Zero(t, st.TotalPresentations)

	list, err := s.ListWithCounts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
}
