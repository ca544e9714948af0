package plugins

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"compact", `{"name":"a","plugins":[1,2]}`, "{\n  \"name\": \"a\",\n  \"plugins\": [\n    1,\n    2\n  ]\n}\n", false},
		{"already formatted", "{\n  \"name\": \"a\"\n}\n", "{\n  \"name\": \"a\"\n}\n", false},
		{"keeps key order", `{"z":1,"a":2}`, "{\n  \"z\": 1,\n  \"a\": 2\n}\n", false},
		{"trailing whitespace", "{\"a\":1}\n\n\n", "{\n  \"a\": 1\n}\n", false},
		{"invalid", `{"a":`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := FormatJSON([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(out))
		})
	}
}

func TestFormatMarketplace(t *testing.T) {
	root := newMarketplace(t, `{"name":"desk-marketplace","owner":{"name":"Desk"},"plugins":[{"name":"stock-analysis","source":"./plugins/stock-analysis"}]}`)
	manifest := ManifestPath(filepath.Join(root, "plugins", "stock-analysis"))
	formatted, err := os.ReadFile(manifest)
	require.NoError(t, err)
	formatted, err = FormatJSON(formatted)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(manifest, formatted, 0o644))

	changes, err := FormatMarketplace(root)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, MarketplacePath(root), changes[0].Path)

	diff := changes[0].Diff()
	assert.Contains(t, diff, "--- a/"+MarketplacePath(root))
	assert.Contains(t, diff, `+  "name": "desk-marketplace",`)

	require.NoError(t, changes[0].Apply())
	changes, err = FormatMarketplace(root)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestFormatMarketplace_Missing(t *testing.T) {
	_, err := FormatMarketplace(t.TempDir())
	assert.Error(t, err)
}
