package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/courier/pkg/adapters/file"
	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Ensure Store implements SessionStore
var _ ports.SessionStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_KeysWithSeparators(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()
	key := "whatsapp-business:1234:+55 11/99"

	require.NoError(t, store.Save(ctx, key, domain.NewSession(key, domain.PlatformWhatsappBusiness, nil)))

	loaded, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, loaded.ID)

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, ".json", filepath.Ext(entries[0].Name()))
}

func TestFileStore_ListIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "not base64!.json"), []byte("{}"), 0o644))

	keys, err := file.New(dir).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestFileStore_ListMissingDir(t *testing.T) {
	keys, err := file.New(filepath.Join(t.TempDir(), "absent")).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}
