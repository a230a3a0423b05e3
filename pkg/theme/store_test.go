package theme_test

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/tmscope/pkg/theme"
)

func TestStore(t *testing.T) {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "themes/alone-color-theme.json", []byte(`{"name": "Alone", "tokenColors": []}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "themes/paper.theme.hcl", []byte(`foreground = "#000"`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "themes/broken.theme.yaml", []byte("tokenColors: {"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "themes/notes.txt", []byte("ignored"), 0o644))

	store := theme.NewStore(ctx)
	err := store.LoadFS(ctx, fs)
	require.Error(t, err, "the broken theme should be reported")
	assert.Contains(t, err.Error(), "broken.theme.yaml")

	t.Run("test_ids", func(t *testing.T) {
		assert.Equal(t, []string{"alone", "paper"}, store.IDs())
	})

	t.Run("test_get_by_id_and_name", func(t *testing.T) {
		byID, err := store.Get("alone")
		require.NoError(t, err)
		byName, err := store.Get("ALONE")
		require.NoError(t, err)
		assert.Same(t, byID, byName)
	})

	t.Run("test_unnamed_theme_takes_id", func(t *testing.T) {
		th, err := store.Get("paper")
		require.NoError(t, err)
		assert.Equal(t, "paper", th.Name)
		assert.Equal(t, "#000000", th.Default.Foreground)
	})

	t.Run("test_mapper_is_shared", func(t *testing.T) {
		a, err := store.Mapper("paper")
		require.NoError(t, err)
		b, err := store.Mapper("paper")
		require.NoError(t, err)
		assert.Same(t, a, b)
	})

	t.Run("test_unknown_theme", func(t *testing.T) {
		_, err := store.Get("solarized")
		require.ErrorIs(t, err, theme.ErrUnknownTheme)
		_, err = store.Mapper("solarized")
		require.ErrorIs(t, err, theme.ErrUnknownTheme)
	})
}

func TestID(t *testing.T) {
	assert.Equal(t, "alone", theme.ID("themes/alone-color-theme.json"))
	assert.Equal(t, "alone", theme.ID("alone.theme.hcl"))
	assert.Equal(t, "plain", theme.ID("x/plain.json"))
}
