package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skymonitor/meteor-go/internal/errors"
)

func TestConcatenateEmptyInput(t *testing.T) {
	err := Concatenate(context.Background(), nil, filepath.Join(t.TempDir(), "out.mp4"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConcatenation))
}

func TestConcatenateSingleInputCopies(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mp4")
	payload := []byte("not really mp4 but bytes are bytes")
	require.NoError(t, os.WriteFile(src, payload, 0o644))

	out := filepath.Join(dir, "nested", "out.mp4")
	require.NoError(t, Concatenate(context.Background(), []string{src}, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestConcatenateSingleInputMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := Concatenate(context.Background(), []string{filepath.Join(dir, "missing.mp4")}, filepath.Join(dir, "out.mp4"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConcatenation))
}
