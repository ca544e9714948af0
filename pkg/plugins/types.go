// Package plugins loads, validates and installs plugins and plugin
// marketplaces. A marketplace is a repository with
// .claude-plugin/marketplace.json listing plugins; each plugin is a directory
// with an optional .claude-plugin/plugin.json manifest and skills/,
// commands/, agents/ and hooks/ components.
package plugins

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

const (
	manifestDir         = ".claude-plugin"
	manifestFileName    = "plugin.json"
	marketplaceFileName = "marketplace.json"
	skillFileName       = "SKILL.md"
	pluginsSubdir       = "plugins"
	skillsSubdir        = "skills"
	commandsSubdir      = "commands"
	agentsSubdir        = "agents"
	hooksSubdir         = "hooks"
	hooksFileName       = "hooks.json"
	skilldeskDir        = ".skilldesk"
)

// Author identifies a plugin author or marketplace owner
type Author struct {
	Name  string `json:"name" jsonschema:"required"`
	Email string `json:"email,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Manifest is .claude-plugin/plugin.json
type Manifest struct {
	Name        string          `json:"name" jsonschema:"required,pattern=^[a-z0-9]+(-[a-z0-9]+)*$"`
	Description string          `json:"description,omitempty"`
	Version     string          `json:"version,omitempty"`
	Author      *Author         `json:"author,omitempty"`
	Homepage    string          `json:"homepage,omitempty"`
	Repository  string          `json:"repository,omitempty"`
	License     string          `json:"license,omitempty"`
	Keywords    []string        `json:"keywords,omitempty"`
	Commands    PathList        `json:"commands,omitempty" jsonschema:"description=Extra command files or directories relative to the plugin root"`
	Agents      PathList        `json:"agents,omitempty"`
	Hooks       string          `json:"hooks,omitempty" jsonschema:"description=Path to a hooks configuration file"`
	MCPServers  json.RawMessage `json:"mcpServers,omitempty" jsonschema:"type=object"`
}

// Owner of a marketplace
type Owner struct {
	Name  string `json:"name" jsonschema:"required"`
	Email string `json:"email,omitempty"`
}

// MarketplaceMetadata holds optional marketplace-wide settings
type MarketplaceMetadata struct {
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
	PluginRoot  string `json:"pluginRoot,omitempty" jsonschema:"description=Base directory prepended to relative plugin sources"`
}

// Marketplace is .claude-plugin/marketplace.json
type Marketplace struct {
	Name     string               `json:"name" jsonschema:"required"`
	Owner    *Owner               `json:"owner,omitempty"`
	Metadata *MarketplaceMetadata `json:"metadata,omitempty"`
	Plugins  []Entry              `json:"plugins" jsonschema:"required"`
}

// Entry is one plugin listed in a marketplace
type Entry struct {
	Name        string   `json:"name" jsonschema:"required"`
	Source      Source   `json:"source" jsonschema:"required"`
	Description string   `json:"description,omitempty"`
	Version     string   `json:"version,omitempty"`
	Author      *Author  `json:"author,omitempty"`
	Category    string   `json:"category,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Homepage    string   `json:"homepage,omitempty"`
	Strict      *bool    `json:"strict,omitempty" jsonschema:"description=Require a plugin.json manifest (default true)"`
}

// IsStrict reports whether the entry requires a plugin manifest
func (e Entry) IsStrict() bool {
	return e.Strict == nil || *e.Strict
}

// SourceKind discriminates plugin sources
type SourceKind string

const (
	SourceLocal  SourceKind = "local"
	SourceGitHub SourceKind = "github"
	SourceGit    SourceKind = "git"
	SourceURL    SourceKind = "url"
)

// Source is where a marketplace entry is fetched from. In JSON it is either
// a relative path string or an object such as
// {"source": "github", "repo": "owner/repo", "ref": "v1"}.
type Source struct {
	Kind SourceKind
	Path string // SourceLocal
	Repo string // SourceGitHub, owner/repo
	URL  string // SourceGit, SourceURL
	Ref  string
}

type sourceObject struct {
	Source string `json:"source"`
	Repo   string `json:"repo,omitempty"`
	URL    string `json:"url,omitempty"`
	Ref    string `json:"ref,omitempty"`
	Path   string `json:"path,omitempty"`
}

// UnmarshalJSON accepts the string and object forms
func (s *Source) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var path string
		if err := json.Unmarshal(data, &path); err != nil {
			return err
		}
		*s = Source{Kind: SourceLocal, Path: path}
		return nil
	}

	var obj sourceObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.Wrap(err, "source must be a path string or an object")
	}

	switch SourceKind(obj.Source) {
	case SourceGitHub:
		*s = Source{Kind: SourceGitHub, Repo: obj.Repo, Ref: obj.Ref}
	case SourceGit, SourceURL:
		*s = Source{Kind: SourceKind(obj.Source), URL: obj.URL, Ref: obj.Ref}
	case SourceLocal, "":
		*s = Source{Kind: SourceLocal, Path: obj.Path}
	default:
		return errors.Errorf("unknown source type %q", obj.Source)
	}
	return nil
}

// MarshalJSON writes local sources as a plain string
func (s Source) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SourceLocal, "":
		return json.Marshal(s.Path)
	case SourceGitHub:
		return json.Marshal(sourceObject{Source: string(s.Kind), Repo: s.Repo, Ref: s.Ref})
	default:
		return json.Marshal(sourceObject{Source: string(s.Kind), URL: s.URL, Ref: s.Ref})
	}
}

func (s Source) String() string {
	switch s.Kind {
	case SourceLocal, "":
		return s.Path
	case SourceGitHub:
		if s.Ref != "" {
			return "github:" + s.Repo + "@" + s.Ref
		}
		return "github:" + s.Repo
	default:
		if s.Ref != "" {
			return s.URL + "#" + s.Ref
		}
		return s.URL
	}
}

// PathList accepts a single path string or a list of paths
type PathList []string

// UnmarshalJSON accepts "a" and ["a", "b"]
func (p *PathList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*p = PathList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.Wrap(err, "expected a path or a list of paths")
	}
	*p = many
	return nil
}

// Plugin is a resolved local plugin with its discovered components
type Plugin struct {
	Name     string
	Root     string
	Entry    *Entry
	Manifest *Manifest
	Skills   []string // skill directory names under skills/
	Commands []string // command names, relative path without .md
	Agents   []string
	Hooks    string // path to the hooks file, empty when none
}

// InstalledPlugin is a plugin copied under .skilldesk/plugins
type InstalledPlugin struct {
	Name   string // org@repo or marketplace plugin name
	Path   string
	Global bool
	Skills []string
	Hooks  string
}

func pluginNameToPrefix(name string) string {
	return strings.Replace(name, "@", "/", 1) + "/"
}

// PluginNameToUserFacing converts "org@repo" directory format to "org/repo"
func PluginNameToUserFacing(pluginName string) string {
	return strings.Replace(pluginName, "@", "/", 1)
}
