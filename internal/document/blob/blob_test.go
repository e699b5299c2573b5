package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ekyc/pkg/platform/sentinel"
)

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "uploads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uploads", "passport.jpg"), []byte("jpeg-bytes"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "huge.jpg"), make([]byte, 64), 0o600))

	store, err := NewFileStore(dir, 32)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	t.Run("reads relative reference", func(t *testing.T) {
		image, err := store.Get(ctx, "uploads/passport.jpg")
		require.NoError(t, err)
		assert.Equal(t, []byte("jpeg-bytes"), image)
	})

	t.Run("missing image is not found", func(t *testing.T) {
		_, err := store.Get(ctx, "uploads/missing.jpg")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("directory is not an image", func(t *testing.T) {
		_, err := store.Get(ctx, "uploads")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("oversized image is refused", func(t *testing.T) {
		_, err := store.Get(ctx, "huge.jpg")
		assert.ErrorIs(t, err, sentinel.ErrTooLarge)
	})

	t.Run("references cannot escape the root", func(t *testing.T) {
		for _, ref := range []string{"", "../etc/passwd", "/etc/passwd", "uploads/../../x", "..\\secret"} {
			_, err := store.Get(ctx, ref)
			assert.ErrorIs(t, err, ErrInvalidReference, ref)
		}
	})

	t.Run("honours cancellation", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.Get(canceled, "uploads/passport.jpg")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	original := []byte("png-bytes")
	require.NoError(t, store.Put("a/b.png", original))
	original[0] = 'X'

	image, err := store.Get(context.Background(), "./a/b.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), image, "stored copy is isolated from the caller")

	_, err = store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	assert.ErrorIs(t, store.Put("../x", nil), ErrInvalidReference)
}
