package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-orderflow/internal/storage"
)

func TestPutAndGet(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	data := []byte("line1,line2\n")
	ref, err := store.Put(context.Background(), "pact/CA/2024-01-01_2024-03-31.csv", data, "text/csv")
	require.NoError(t, err)

	assert.Equal(t, "pact/CA/2024-01-01_2024-03-31.csv", ref.Key)
	assert.Equal(t, "text/csv", ref.ContentType)
	assert.Equal(t, int64(len(data)), ref.SizeBytes)
	assert.Len(t, ref.Hash, 64)

	got, err := store.Get(context.Background(), ref.Key)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestPutOverwriteIsIdempotentForSameContent(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	first, err := store.Put(context.Background(), "labels/ord-1.pdf", []byte("pdf-bytes"), "application/pdf")
	require.NoError(t, err)
	second, err := store.Put(context.Background(), "labels/ord-1.pdf", []byte("pdf-bytes"), "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, first.Hash, second.Hash)
}

func TestRejectsEscapingKeys(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../outside", []byte("x"), "text/plain")
	assert.Error(t, err)

	_, err = store.Get(context.Background(), "/etc/passwd")
	assert.Error(t, err)
}

func TestGetMissingKey(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "pact/CA/missing.csv")
	assert.Error(t, err)
}
