package plugins

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// Schema kinds accepted by Schema
const (
	SchemaMarketplace = "marketplace"
	SchemaPlugin      = "plugin"
)

// JSONSchema describes the string and object forms of a plugin source
func (Source) JSONSchema() *jsonschema.Schema {
	obj := &jsonschema.Schema{
		Type:     "object",
		Required: []string{"source"},
	}
	obj.Properties = jsonschema.NewProperties()
	obj.Properties.Set("source", &jsonschema.Schema{
		Type: "string",
		Enum: []any{string(SourceGitHub), string(SourceGit), string(SourceURL)},
	})
	obj.Properties.Set("repo", &jsonschema.Schema{Type: "string", Pattern: `^[^/]+/[^/]+$`})
	obj.Properties.Set("url", &jsonschema.Schema{Type: "string"})
	obj.Properties.Set("ref", &jsonschema.Schema{Type: "string"})

	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string", Description: "Path relative to the marketplace root"},
			obj,
		},
	}
}

// JSONSchema describes a single path or a list of paths
func (PathList) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		},
	}
}

// Schema returns the JSON Schema for a marketplace or plugin document
func Schema(kind string) ([]byte, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct:             true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}

	var s *jsonschema.Schema
	switch kind {
	case SchemaMarketplace:
		s = r.Reflect(&Marketplace{})
		s.Title = "Plugin marketplace"
	case SchemaPlugin:
		s = r.Reflect(&Manifest{})
		s.Title = "Plugin manifest"
	default:
		return nil, errors.Errorf("unknown schema kind %q (want %s or %s)", kind, SchemaMarketplace, SchemaPlugin)
	}

	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal schema")
	}
	return out, nil
}
