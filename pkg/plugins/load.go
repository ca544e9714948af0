package plugins

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ManifestPath returns the manifest location for a plugin directory
func ManifestPath(pluginDir string) string {
	return filepath.Join(pluginDir, manifestDir, manifestFileName)
}

// MarketplacePath returns the marketplace location for a repository root
func MarketplacePath(root string) string {
	return filepath.Join(root, manifestDir, marketplaceFileName)
}

// LoadManifest reads the plugin manifest in pluginDir. Fields not in the
// manifest schema are returned as unknown keys rather than failing the load.
func LoadManifest(pluginDir string) (*Manifest, []string, error) {
	var m Manifest
	unknown, err := loadJSON(ManifestPath(pluginDir), &m)
	if err != nil {
		return nil, nil, err
	}
	return &m, unknown, nil
}

// LoadMarketplace reads the marketplace file of the repository at root
func LoadMarketplace(root string) (*Marketplace, []string, error) {
	var m Marketplace
	unknown, err := loadJSON(MarketplacePath(root), &m)
	if err != nil {
		return nil, nil, err
	}
	return &m, unknown, nil
}

func loadJSON(path string, v any) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return unknownKeys(raw, reflect.TypeOf(v).Elem()), nil
}

// unknownKeys lists top-level keys in raw that t has no json field for
func unknownKeys(raw map[string]json.RawMessage, t reflect.Type) []string {
	known := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			known[name] = true
		}
	}

	var out []string
	for k := range raw {
		if !known[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
