package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"slidecraft/internal/apperr"
)

type stubObject struct {
	data        []byte
	contentType string
}

type stubBucket struct {
	mu      sync.Mutex
	objects map[string]stubObject
}

func (b *stubBucket) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

// fakeS3 понимает path-style PUT/GET/DELETE одного бакета.
func fakeS3(t *testing.T, bucket string) (*httptest.Server, *stubBucket) {
	t.Helper()
	store := &stubBucket{objects: map[string]stubObject{}}
	objects := store.objects
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := "/" + bucket + "/"
		if !strings.HasPrefix(r.URL.Path, prefix) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		key := strings.TrimPrefix(r.URL.Path, prefix)
		store.mu.Lock()
		defer store.mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			b, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			objects[key] = stubObject{data: b, contentType: r.Header.Get("Content-Type")}
			w.Header().Set("ETag", `"etag"`)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			o, ok := objects[key]
			if !ok {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>` + key + `</Key></Error>`))
				return
			}
			w.Header().Set("Content-Type", o.contentType)
			w.Header().Set("Content-Length", strconv.Itoa(len(o.data)))
			w.Header().Set("Last-Modified", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Format(http.TimeFormat))
			_, _ = w.Write(o.data)
		case http.MethodDelete:
			delete(objects, key)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, store
}

func newS3(t *testing.T, endpoint string) *S3Provider {
	t.Helper()
	// без чтения ~/.aws и IMDS
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	p, err := NewS3Provider(context.Background(), S3Options{
		Bucket:          "slides",
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)
	return p
}

func TestS3Provider_PutGetDelete(t *testing.T) {
	srv, store := fakeS3(t, "slides")
	p := newS3(t, srv.URL)
	ctx := context.Background()

	key := Key("user-1", "presentation_1.pptx")
	require.NoError(t, p.Put(ctx, key, bytes.NewReader([]byte("PK\x03\x04")), "application/octet-stream"))
	require.True(t, store.has("user-1/presentation_1.pptx"))

	obj, err := p.Get(ctx, key)
	require.NoError(t, err)
	b, err := io.ReadAll(obj.Body)
	require.NoError(t, obj.Body.Close())
	require.NoError(t, err)
	require.Equal(t, "PK\x03\x04", string(b))
	require.EqualValues(t, 4, obj.ContentLength)
	require.Equal(t, "application/octet-stream", obj.ContentType)
	require.False(t, obj.LastModified.IsZero())

	require.NoError(t, p.Delete(ctx, key))
	require.False(t, store.has("user-1/presentation_1.pptx"))
}

func TestS3Provider_MissingKeyIsNotFound(t *testing.T) {
	srv, _ := fakeS3(t, "slides")
	p := newS3(t, srv.URL)

	_, err := p.Get(context.Background(), Key("user-1", "nope.pptx"))
	require.ErrorIs(t, err, apperr.NotFound(""))
}

func TestS3Provider_RejectsBadKeyAndBucket(t *testing.T) {
	_, err := NewS3Provider(context.Background(), S3Options{})
	require.Error(t, err)

	srv, _ := fakeS3(t, "slides")
	p := newS3(t, srv.URL)
	require.Error(t, p.Put(context.Background(), "", bytes.NewReader(nil), "x"))
}
