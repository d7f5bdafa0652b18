package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Default(t *testing.T) {
	assert := assert.New(t)

	cfg := Default()
	assert.Equal("auto", cfg.Memoize)
	assert.Equal("parser", cfg.Package)
	assert.False(cfg.SkipActions)
	assert.Equal(0, cfg.Verbosity)
}

func Test_Load_MissingFileFallsBackToDefaults(t *testing.T) {
	assert := assert.New(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	assert.NoError(err)
	assert.Equal(Default(), cfg)
}

func Test_Load_ReadsFileAndOverridesFields(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, ".sturgeon.toml")
	contents := `
package = "mygrammar"
verbosity = 2
skip_actions = true
`
	assert.NoError(os.WriteFile(path, []byte(contents), 0644))

	cfg, err := Load(path)
	assert.NoError(err)
	assert.Equal("mygrammar", cfg.Package)
	assert.Equal(2, cfg.Verbosity)
	assert.True(cfg.SkipActions)
	assert.Equal("auto", cfg.Memoize, "fields absent from the file keep their default")
}

func Test_Load_RejectsMalformedToml(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, ".sturgeon.toml")
	assert.NoError(os.WriteFile(path, []byte("not valid = = toml"), 0644))

	_, err := Load(path)
	assert.Error(err)
}
