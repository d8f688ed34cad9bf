package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateLayerName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"slope", false},
		{"savi_2004", false},
		{"biomes/cerrado", false},
		{"", true},
		{"../slope", true},
		{"a/../../slope", true},
		{"/etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLayerName(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.ErrorIs(t, ValidateLayerName("../x"), ErrPathEscape)
}

func TestValidatePathWithinDirectory(t *testing.T) {
	tmp := t.TempDir()
	safe := filepath.Join(tmp, "safe")
	outside := filepath.Join(tmp, "outside")
	require.NoError(t, os.MkdirAll(safe, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(safe, "link")))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in directory", filepath.Join(safe, "assets.json"), false},
		{"new nested file", filepath.Join(safe, "a", "b", "assets.json"), false},
		{"directory itself", safe, false},
		{"dot dot", filepath.Join(safe, "..", "assets.json"), true},
		{"sibling directory", filepath.Join(outside, "assets.json"), true},
		{"through symlink", filepath.Join(safe, "link", "assets.json"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, safe)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPathEscape)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePathWithinDirectory_MissingDir(t *testing.T) {
	err := ValidatePathWithinDirectory("x.json", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestValidateExportPath(t *testing.T) {
	assert.NoError(t, ValidateExportPath(filepath.Join(t.TempDir(), "assets.json")))
	assert.NoError(t, ValidateExportPath("assets.json"))
	assert.Error(t, ValidateExportPath("/proc/self/assets.json"))
}
