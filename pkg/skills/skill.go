// Package skills loads and validates skill folders. A skill is a directory
// holding a SKILL.md file with YAML frontmatter, plus optional scripts/,
// references/ and assets/ subdirectories loaded on demand by the agent.
package skills

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

const skillFileName = "SKILL.md"

// Frontmatter is the YAML header of SKILL.md
type Frontmatter struct {
	Name          string            `mapstructure:"name" json:"name"`
	Description   string            `mapstructure:"description" json:"description"`
	License       string            `mapstructure:"license" json:"license,omitempty"`
	Compatibility string            `mapstructure:"compatibility" json:"compatibility,omitempty"`
	Metadata      map[string]string `mapstructure:"metadata" json:"metadata,omitempty"`
	AllowedTools  []string          `mapstructure:"allowed-tools" json:"allowedTools,omitempty"`
}

// Skill represents a parsed skill folder
type Skill struct {
	Name        string // Unique name, prefixed with the plugin name for plugin skills
	Description string
	Directory   string // Full path to the skill directory
	Origin      string // local, global or plugin:<name>; set by Discovery
	Content     string // Body of SKILL.md without frontmatter
	Frontmatter Frontmatter
	Resources   Resources
	Links       []string // Relative link destinations found in the body

	raw map[string]any
}

var knownKeys = map[string]bool{
	"name":          true,
	"description":   true,
	"license":       true,
	"compatibility": true,
	"metadata":      true,
	"allowed-tools": true,
}

// Parse reads SKILL.md from path, which may be the skill directory or the
// file itself. It fails only when the file is unreadable or the frontmatter
// is not valid YAML; semantic problems are left to Validate.
func Parse(path string) (*Skill, error) {
	file := path
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		file = filepath.Join(path, skillFileName)
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}

	raw, links, err := parseMarkdown(content)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", file)
	}
	if raw == nil {
		return nil, errors.Errorf("%s: missing frontmatter", file)
	}

	fm, err := decodeFrontmatter(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: invalid frontmatter", file)
	}

	dir := filepath.Dir(file)
	resources, err := Inventory(dir)
	if err != nil {
		return nil, err
	}

	return &Skill{
		Name:        fm.Name,
		Description: fm.Description,
		Directory:   dir,
		Content:     extractBodyContent(string(content)),
		Frontmatter: fm,
		Resources:   resources,
		Links:       links,
		raw:         raw,
	}, nil
}

// parseMarkdown extracts the frontmatter map and relative link targets
func parseMarkdown(content []byte) (map[string]any, []string, error) {
	md := goldmark.New(goldmark.WithExtensions(meta.Meta))

	pctx := parser.NewContext()
	doc := md.Parser().Parse(text.NewReader(content), parser.WithContext(pctx))

	raw, err := meta.TryGet(pctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid YAML frontmatter")
	}
	if len(raw) == 0 {
		raw = nil
	}

	var links []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		var dest string
		switch node := n.(type) {
		case *ast.Link:
			dest = string(node.Destination)
		case *ast.Image:
			dest = string(node.Destination)
		default:
			return ast.WalkContinue, nil
		}
		if isRelativeLink(dest) {
			links = append(links, dest)
		}
		return ast.WalkContinue, nil
	})

	return raw, links, nil
}

// ReadFrontmatter returns the YAML frontmatter of the Markdown file at path,
// or nil when it has none. Used for plugin command and agent files.
func ReadFrontmatter(path string) (map[string]any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	raw, _, err := parseMarkdown(content)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return raw, nil
}

func isRelativeLink(dest string) bool {
	if dest == "" || strings.HasPrefix(dest, "#") || strings.HasPrefix(dest, "/") {
		return false
	}
	return !strings.Contains(dest, "://") && !strings.HasPrefix(dest, "mailto:")
}

func decodeFrontmatter(raw map[string]any) (Frontmatter, error) {
	var fm Frontmatter

	known := make(map[string]any, len(raw))
	for k, v := range raw {
		if knownKeys[k] {
			known[k] = v
		}
	}
	if md, ok := known["metadata"]; ok && !isStringMap(md) {
		delete(known, "metadata")
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &fm,
		WeaklyTypedInput: true,
		DecodeHook:       splitFieldsHook,
	})
	if err != nil {
		return fm, errors.Wrap(err, "failed to create frontmatter decoder")
	}
	if err := decoder.Decode(known); err != nil {
		return fm, err
	}
	return fm, nil
}

// splitFieldsHook accepts `allowed-tools: Read Grep Bash` as a list
func splitFieldsHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() == reflect.String && to.Kind() == reflect.Slice && to.Elem().Kind() == reflect.String {
		return strings.Fields(data.(string)), nil
	}
	return data, nil
}

func isStringMap(v any) bool {
	switch m := v.(type) {
	case map[string]any:
		for _, val := range m {
			if _, ok := val.(string); !ok {
				return false
			}
		}
		return true
	case map[any]any:
		for key, val := range m {
			if _, ok := key.(string); !ok {
				return false
			}
			if _, ok := val.(string); !ok {
				return false
			}
		}
		return true
	}
	return false
}

// extractBodyContent removes YAML frontmatter and returns the body
func extractBodyContent(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	frontmatterEnd := -1

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			frontmatterEnd = i
			break
		}
	}

	if frontmatterEnd == -1 {
		return content
	}

	return strings.TrimLeft(strings.Join(lines[frontmatterEnd+1:], "\n"), "\n")
}
