package presentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"slidecraft/internal/auth"
	"slidecraft/internal/converter"
	"slidecraft/internal/db/dbtest"
	"slidecraft/internal/middleware"
	"slidecraft/internal/models"
	"slidecraft/internal/repo"
	"slidecraft/internal/shell"
	"slidecraft/internal/shell/shelltest"
	"slidecraft/internal/storage"
	"slidecraft/internal/users"
)

type env struct {
	router  *mux.Router
	tokens  *auth.Tokens
	users   *users.Service
	records *repo.ConversionStore
	work    string
}

func fakePandoc() *shelltest.Fake {
	return &shelltest.Fake{Fn: func(_ context.Context, cmd shell.Command) (shell.Result, error) {
		for i, a := range cmd.Args {
			if a == "-o" {
				return shell.Result{}, os.WriteFile(cmd.Args[i+1], []byte("PK\x03\x04pptx"), 0o600)
			}
		}
		return shell.Result{}, errors.New("no -o")
	}}
}

func newEnv(t *testing.T, files storage.Provider) *env {
	t.Helper()
	d := dbtest.New(t)
	if files == nil {
		var err error
		files, err = storage.NewLocalProvider(t.TempDir())
		require.NoError(t, err)
	}
	work := t.TempDir()
	conv := converter.New(converter.Options{WorkDir: work, TemplateDir: t.TempDir(), Timeout: time.Second}, fakePandoc())
	records := repo.NewConversionStore(d)
	us := users.NewService(d, files)
	tokens := auth.NewTokens("secret", time.Hour)

	r := mux.NewRouter()
	api := r.PathPrefix("/").Subrouter()
	api.Use(middleware.Authenticate(tokens, us))
	RegisterRoutes(api, NewHandler(NewService(conv, records, files)))
	return &env{router: r, tokens: tokens, users: us, records: records, work: work}
}

func (e *env) login(t *testing.T, name string) (string, *models.User) {
	t.Helper()
	u, err := e.users.Create(context.Background(), users.CreateInput{Username: name, Password: "secret1"})
	require.NoError(t, err)
	tok, _, err := e.tokens.Issue(u.ID, u.Role)
	require.NoError(t, err)
	return tok, u
}

func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestConvert_RecordsAndStreams(t *testing.T) {
	e := newEnv(t, nil)
	tok, alice := e.login(t, "alice")

	rec := e.do(t, http.MethodPost, "/convert", tok, map[string]any{"markdown": "## Title\n- point"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, ContentType, rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "presentation_")
	require.Equal(t, "PK\x03\x04pptx", rec.Body.String())
	id := rec.Header().Get("X-Conversion-Id")
	require.NotEmpty(t, id)

	rows, err := e.records.ListForUser(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 1, rows[0].Metadata.Data().SlideCount)
	require.Equal(t, id, rows[0].ID)

	// scratch-каталог удалён после отдачи
	es, err := os.ReadDir(e.work)
	require.NoError(t, err)
	require.Empty(t, es)

	hist := e.do(t, http.MethodGet, "/history", tok, nil)
	require.Equal(t, http.StatusOK, hist.Code)
	require.NotContains(t, hist.Body.String(), "## Title")
	require.Contains(t, hist.Body.String(), `"slideCount":1`)

	one := e.do(t, http.MethodGet, "/conversion/"+id, tok, nil)
	require.Equal(t, http.StatusOK, one.Code)
	require.Contains(t, one.Body.String(), `"markdown":"## Title\n- point"`)

	file := e.do(t, http.MethodGet, "/conversion/"+id+"/file", tok, nil)
	require.Equal(t, http.StatusOK, file.Code)
	require.Equal(t, "PK\x03\x04pptx", file.Body.String())
}

func TestConversion_OtherOwnerSeesNotFound(t *testing.T) {
	e := newEnv(t, nil)
	alice, _ := e.login(t, "alice")
	bob, _ := e.login(t, "bob")

	rec := e.do(t, http.MethodPost, "/convert", alice, map[string]any{"markdown": "# A"})
	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get("X-Conversion-Id")

	require.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/conversion/"+id, bob, nil).Code)
	require.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/conversion/"+id+"/file", bob, nil).Code)
	require.JSONEq(t, `{"conversions":[]}`, e.do(t, http.MethodGet, "/history", bob, nil).Body.String())
}

func TestConvert_EmptyMarkdownRejected(t *testing.T) {
	e := newEnv(t, nil)
	tok, alice := e.login(t, "alice")

	rec := e.do(t, http.MethodPost, "/convert", tok, map[string]any{"markdown": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "validation_error")

	rows, err := e.records.ListForUser(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Empty(t, rows)
	es, err := os.ReadDir(e.work)
	require.NoError(t, err)
	require.Empty(t, es)
}

func TestConvert_RequiresToken(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.do(t, http.MethodPost, "/convert", "", map[string]any{"markdown": "## A"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

type brokenStorage struct{}

func (brokenStorage) Put(context.Context, string, io.ReadSeeker, string) error {
	return errors.New("disk full")
}
func (brokenStorage) Get(context.Context, string) (*storage.Object, error) {
	return nil, errors.New("disk full")
}
func (brokenStorage) Delete(context.Context, string) error { return nil }

func TestConvert_HistoryFailureStillReturnsDocument(t *testing.T) {
	e := newEnv(t, brokenStorage{})
	tok, alice := e.login(t, "alice")

	rec := e.do(t, http.MethodPost, "/convert", tok, map[string]any{"markdown": "## Title"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(rec.Body.String(), "PK"))
	require.NotEmpty(t, rec.Header().Get("X-History-Warning"))

	rows, err := e.records.ListForUser(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Empty(t, rows)
}
