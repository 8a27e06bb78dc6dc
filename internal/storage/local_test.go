package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"slidecraft/internal/apperr"
)

func TestLocalProvider_PutGetDelete(t *testing.T) {
	p, err := NewLocalProvider(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := Key("user-1", "presentation_1.pptx")
	require.NoError(t, p.Put(ctx, key, bytes.NewReader([]byte("PK\x03\x04")), "application/octet-stream"))

	obj, err := p.Get(ctx, key)
	require.NoError(t, err)
	b, err := io.ReadAll(obj.Body)
	require.NoError(t, obj.Body.Close())
	require.NoError(t, err)
	require.Equal(t, "PK\x03\x04", string(b))
	require.EqualValues(t, 4, obj.ContentLength)

	require.NoError(t, p.Delete(ctx, key))
	require.NoError(t, p.Delete(ctx, key))

	_, err = p.Get(ctx, key)
	require.ErrorIs(t, err, apperr.NotFound(""))
}

func TestCleanKey(t *testing.T) {
	k, err := cleanKey("../../etc/passwd")
	require.NoError(t, err)
	require.Equal(t, "etc/passwd", k)

	k, err = cleanKey("u/a.pptx")
	require.NoError(t, err)
	require.Equal(t, "u/a.pptx", k)

	_, err = cleanKey("")
	require.Error(t, err)
}
