package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimal valid PNG header, enough for content sniffing
var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}

func TestPutStoresSniffedImage(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "/images")
	require.NoError(t, err)

	url, err := store.Put(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/images/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	data, err := os.ReadFile(filepath.Join(store.Dir(), filepath.Base(url)))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestPutRejectsNonImageData(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "/images")
	require.NoError(t, err)

	_, err = store.Put(context.Background(), []byte("<html>not an image</html>"))
	require.ErrorIs(t, err, ErrUnsupportedType)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads must not hit disk")
}

func TestPutUsesUniqueNames(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "/images")
	require.NoError(t, err)

	a, err := store.Put(context.Background(), pngHeader)
	require.NoError(t, err)
	b, err := store.Put(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
