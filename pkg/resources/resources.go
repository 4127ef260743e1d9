// Package resources exposes structured domain knowledge as MCP resources:
// domain://glossary/* for terminology and metric catalogs, domain://examples/*
// for query patterns and report templates. Content is embedded JSON so the
// binary is self-contained.
package resources

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
)

//go:embed data/glossary/*.json data/examples/*.json
var dataFS embed.FS

// URIScheme prefixes every resource URI.
const URIScheme = "domain://"

// Metadata describes a resource for list responses.
type Metadata struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType"`
}

// Content is one entry in a resources/read response.
type Content struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// ReadResult is the MCP resources/read response shape.
type ReadResult struct {
	Contents []Content `json:"contents"`
}

type resource struct {
	meta Metadata
	text string
}

// Registry holds the embedded resources keyed by URI. Immutable after
// construction, safe for concurrent reads.
type Registry struct {
	byURI map[string]resource
	order []string
}

// categories maps embedded directories to URI prefixes and display labels.
var categories = []struct {
	dir    string
	prefix string
	label  string
}{
	{dir: "data/glossary", prefix: URIScheme + "glossary/", label: "Domain Glossary"},
	{dir: "data/examples", prefix: URIScheme + "examples/", label: "Query Examples"},
}

// NewRegistry loads all embedded resources. Malformed files are skipped with
// an error log; the embed is compiled in, so failures mean a broken build
// artifact rather than a runtime condition.
func NewRegistry() *Registry {
	r := &Registry{byURI: map[string]resource{}}

	for _, cat := range categories {
		entries, err := fs.ReadDir(dataFS, cat.dir)
		if err != nil {
			slog.Error("Reading embedded resource directory", "dir", cat.dir, "error", err)
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			raw, err := dataFS.ReadFile(path.Join(cat.dir, entry.Name()))
			if err != nil {
				slog.Error("Reading embedded resource", "file", entry.Name(), "error", err)
				continue
			}

			var content map[string]any
			if err := json.Unmarshal(raw, &content); err != nil {
				slog.Error("Parsing embedded resource JSON", "file", entry.Name(), "error", err)
				continue
			}

			stem := strings.TrimSuffix(entry.Name(), ".json")
			uri := cat.prefix + stem

			name, _ := content["name"].(string)
			if name == "" {
				name = titleFromStem(stem)
			}
			description, _ := content["description"].(string)
			if description == "" {
				description = cat.label + ": " + titleFromStem(stem)
			}

			// Re-encode for stable, indented read output.
			text, err := json.MarshalIndent(content, "", "  ")
			if err != nil {
				continue
			}

			r.byURI[uri] = resource{
				meta: Metadata{
					URI:         uri,
					Name:        name,
					Description: description,
					MimeType:    "application/json",
				},
				text: string(text),
			}
			r.order = append(r.order, uri)
		}
	}
	sort.Strings(r.order)

	slog.Info("Loaded MCP resources", "count", len(r.byURI))
	return r
}

// List returns metadata for every resource, sorted by URI.
func (r *Registry) List() []Metadata {
	out := make([]Metadata, 0, len(r.order))
	for _, uri := range r.order {
		out = append(out, r.byURI[uri].meta)
	}
	return out
}

// Read returns a resource's contents in MCP format.
func (r *Registry) Read(uri string) (ReadResult, error) {
	res, ok := r.byURI[uri]
	if !ok {
		slog.Warn("Resource not found", "uri", uri)
		return ReadResult{}, fmt.Errorf("Resource not found: %s", uri)
	}
	return ReadResult{Contents: []Content{{
		URI:      uri,
		MimeType: res.meta.MimeType,
		Text:     res.text,
	}}}, nil
}

// Text returns a resource's raw JSON text, for internal consumers that do
// not need the MCP envelope.
func (r *Registry) Text(uri string) (string, bool) {
	res, ok := r.byURI[uri]
	return res.text, ok
}

func titleFromStem(stem string) string {
	words := strings.Split(stem, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
