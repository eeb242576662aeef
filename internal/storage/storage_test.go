package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStore_Put(t *testing.T) {
	root := t.TempDir()
	store := NewDiskStore(root, "http://localhost:8080")

	ref, err := store.Put(context.Background(), "checkins/c1/notes.png", "image/png", strings.NewReader("payload"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/attachments/checkins/c1/notes.png", ref.URL)
	assert.Equal(t, filepath.Join(root, "checkins", "c1", "notes.png"), ref.Path)

	data, err := os.ReadFile(ref.Path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestDiskStore_Put_EscapesKey(t *testing.T) {
	store := NewDiskStore(t.TempDir(), "http://localhost:8080")

	ref, err := store.Put(context.Background(), "checkins/c1/my notes.png", "image/png", strings.NewReader("x"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/attachments/checkins/c1/my%20notes.png", ref.URL)
}

func TestDiskStore_Put_CancelledContext(t *testing.T) {
	store := NewDiskStore(t.TempDir(), "http://localhost:8080")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Put(ctx, "checkins/c1/notes.png", "image/png", strings.NewReader("x"))
	assert.Error(t, err)
}
