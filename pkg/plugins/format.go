package plugins

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/aymanbagabas/go-udiff"
	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
)

// FormatChange is a manifest whose canonical form differs from disk
type FormatChange struct {
	Path   string
	Before string
	After  string
}

// Diff renders the change as a unified diff
func (c FormatChange) Diff() string {
	return udiff.Unified("a/"+c.Path, "b/"+c.Path, c.Before, c.After)
}

// FormatJSON re-indents a JSON document with two spaces and a trailing
// newline. Key order is kept.
func FormatJSON(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(data), "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// FormatMarketplace checks marketplace.json at root and the manifests of
// its local plugins and returns the files that are not canonically
// formatted. Plugins without a manifest are skipped.
func FormatMarketplace(root string) ([]FormatChange, error) {
	m, _, err := LoadMarketplace(root)
	if err != nil {
		return nil, err
	}

	paths := []string{MarketplacePath(root)}
	for _, entry := range m.Plugins {
		if entry.Source.Kind != SourceLocal && entry.Source.Kind != "" {
			continue
		}
		dir, err := ResolveLocalSource(root, m, entry.Source)
		if err != nil {
			continue
		}
		if fileExists(ManifestPath(dir)) {
			paths = append(paths, ManifestPath(dir))
		}
	}

	var changes []FormatChange
	for _, path := range paths {
		change, err := formatFile(path)
		if err != nil {
			return nil, err
		}
		if change != nil {
			changes = append(changes, *change)
		}
	}
	return changes, nil
}

func formatFile(path string) (*FormatChange, error) {
	data, err := lockedfile.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	formatted, err := FormatJSON(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	if bytes.Equal(data, formatted) {
		return nil, nil
	}
	return &FormatChange{Path: path, Before: string(data), After: string(formatted)}, nil
}

// Apply writes the formatted content back to disk
func (c FormatChange) Apply() error {
	info, err := os.Stat(c.Path)
	if err != nil {
		return errors.Wrapf(err, "failed to stat %s", c.Path)
	}
	if err := lockedfile.Write(c.Path, bytes.NewReader([]byte(c.After)), info.Mode().Perm()); err != nil {
		return errors.Wrapf(err, "failed to write %s", c.Path)
	}
	return nil
}
