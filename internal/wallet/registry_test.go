package wallet

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerctl/internal/prompt"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	return NewRegistry(Options{
		Root:        filepath.Join(dir, "wallets"),
		PointerPath: filepath.Join(dir, "active_wallet"),
		DefaultName: "main",
	})
}

func pointer(t *testing.T, r *Registry) string {
	t.Helper()
	name, err := r.readPointer()
	require.NoError(t, err)
	return name
}

// =============================================================================
// Create / List
// =============================================================================

func TestCreateThenListIncludesNameOnce(t *testing.T) {
	r := newTestRegistry(t)

	for _, name := range []string{"main", "savings", "cold_2", "a-b"} {
		require.NoError(t, r.Create(name))
	}

	names, err := r.List()
	require.NoError(t, err)
	sort.Strings(names)
	assert.Equal(t, []string{"a-b", "cold_2", "main", "savings"}, names)

	// The last created wallet is active.
	assert.Equal(t, "a-b", pointer(t, r))
}

func TestCreateRejectsInvalidNames(t *testing.T) {
	r := newTestRegistry(t)

	for _, name := range []string{"", "Main", "my wallet", "../x", "a/b", ".hidden", "ünï"} {
		err := r.Create(name)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}

	names, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestCreateAlreadyExists(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Create("main"))

	err := r.Create("main")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// A bare directory without .config still blocks the name.
	require.NoError(t, os.MkdirAll(r.Dir("stray"), 0700))
	assert.ErrorIs(t, r.Create("stray"), ErrAlreadyExists)
}

func TestCreateLeavesNoStagingOnPointerFailure(t *testing.T) {
	dir := t.TempDir()
	// The pointer path is a directory, so writing it fails.
	pointerPath := filepath.Join(dir, "active_wallet")
	require.NoError(t, os.MkdirAll(filepath.Join(pointerPath, "blocker"), 0700))

	r := NewRegistry(Options{Root: filepath.Join(dir, "wallets"), PointerPath: pointerPath})
	require.Error(t, r.Create("main"))

	entries, err := os.ReadDir(r.Root())
	require.NoError(t, err)
	assert.Empty(t, entries, "half-built wallet left behind")
}

func TestListSkipsDirectoriesWithoutConfig(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Create("main"))
	require.NoError(t, os.MkdirAll(r.Dir("notes"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(r.Root(), "README"), []byte("x"), 0600))

	names, err := r.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, names)
}

func TestListMissingRoot(t *testing.T) {
	r := newTestRegistry(t)
	names, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

// =============================================================================
// Switch
// =============================================================================

func TestSwitch(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Create("main"))
	require.NoError(t, r.Create("savings"))

	require.NoError(t, r.Switch("main"))
	assert.Equal(t, "main", pointer(t, r))

	assert.ErrorIs(t, r.Switch("main"), ErrNoOp)
	assert.ErrorIs(t, r.Switch("ghost"), ErrNotFound)
	assert.Equal(t, "main", pointer(t, r))
}

// =============================================================================
// Delete
// =============================================================================

func TestDeleteActiveWalletRejected(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Create("main"))

	script := prompt.NewScript("yes", "main")
	err := r.Delete("main", script)
	assert.ErrorIs(t, err, ErrActiveWalletProtected)
	assert.Equal(t, 2, script.Remaining(), "no prompt should be shown")
	assert.True(t, r.Exists("main"))
}

func TestDeleteRemovesFromListing(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Create("old"))
	require.NoError(t, r.Create("main"))

	require.NoError(t, r.Delete("old", prompt.NewScript("y", "old")))

	names, err := r.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, names)

	entries, _ := os.ReadDir(r.Root())
	assert.Len(t, entries, 1, "delete staging left behind")
}

func TestDeleteRequiresBothConfirmations(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Create("old"))
	require.NoError(t, r.Create("main"))

	assert.ErrorIs(t, r.Delete("old", prompt.NewScript("n")), ErrDeleteAborted)
	assert.ErrorIs(t, r.Delete("old", prompt.NewScript("y", "OLD")), ErrDeleteAborted)
	assert.True(t, r.Exists("old"))

	_, err := r.List()
	require.NoError(t, err)
}

func TestDeleteNotFound(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Create("main"))
	assert.ErrorIs(t, r.Delete("ghost", prompt.NewScript("y", "ghost")), ErrNotFound)
}

func TestDeletePromptError(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Create("old"))
	require.NoError(t, r.Create("main"))

	err := r.Delete("old", prompt.NewScript())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDeleteAborted))
	assert.True(t, r.Exists("old"))
}

// =============================================================================
// Import
// =============================================================================

func TestImport(t *testing.T) {
	r := newTestRegistry(t)

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, ".config", "keys"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(src, ".config", "keys", "k"), []byte("material"), 0600))

	// Either the parent or the .config directory itself is accepted.
	require.NoError(t, r.Import("imported", src))
	require.NoError(t, r.Import("direct", filepath.Join(src, ".config")))

	for _, name := range []string{"imported", "direct"} {
		data, err := os.ReadFile(filepath.Join(r.ConfigPath(name), "keys", "k"))
		require.NoError(t, err)
		assert.Equal(t, "material", string(data))
	}
	assert.Equal(t, "direct", pointer(t, r))
}

func TestImportInvalidSource(t *testing.T) {
	r := newTestRegistry(t)
	err := r.Import("x", t.TempDir())
	assert.ErrorIs(t, err, ErrInvalidSource)
	assert.False(t, r.Exists("x"))
}

// =============================================================================
// Active resolution
// =============================================================================

func TestResolveActiveCreatesDefault(t *testing.T) {
	r := newTestRegistry(t)

	name, err := r.ResolveActive()
	require.NoError(t, err)
	assert.Equal(t, "main", name)
	assert.True(t, r.Exists("main"))
	assert.Equal(t, "main", pointer(t, r))
}

func TestResolveActivePicksExistingWallet(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, os.MkdirAll(r.ConfigPath("restored"), 0700))

	name, err := r.ResolveActive()
	require.NoError(t, err)
	assert.Equal(t, "restored", name)
	assert.False(t, r.Exists("main"), "default wallet must not be created when one exists")
}

func TestResolveActiveReportsMissingWallet(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Create("main"))
	require.NoError(t, os.RemoveAll(r.Dir("main")))

	_, err := r.ResolveActive()
	assert.ErrorIs(t, err, ErrActiveMissing)
	assert.False(t, r.Exists("main"), "deleted wallet must not be recreated")
}

func TestActiveWithoutPointer(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Active()
	assert.ErrorIs(t, err, ErrNoActiveWallet)
}
