// Package graphfile loads graphs from a directory of JSON or YAML documents.
// A document's id defaults to its file name without the extension.
package graphfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/nodeflow/internal/fsutil"
	"github.com/specialistvlad/nodeflow/internal/graph"
	"gopkg.in/yaml.v3"
)

// Extensions lists the file types Dir reads.
var Extensions = []string{".json", ".yaml", ".yml"}

var (
	// ErrNotFound is returned for a graph id no document declares.
	ErrNotFound = errors.New("graph not found")
	// ErrFormat is returned for files that are neither JSON nor YAML.
	ErrFormat = errors.New("unsupported graph file format")
)

// Decode parses one graph document. The format is chosen by name's
// extension.
func Decode(name string, data []byte) (*graph.Graph, error) {
	var g graph.Graph
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&g); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		normalizeNumbers(&g)
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrFormat, name)
	}
	if g.ID == "" {
		base := filepath.Base(name)
		g.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return &g, nil
}

// normalizeNumbers turns json.Number literals into int64 when integral and
// float64 otherwise, so node data looks the same as YAML-decoded data.
func normalizeNumbers(g *graph.Graph) {
	for _, n := range g.Nodes {
		if n == nil {
			continue
		}
		for k, v := range n.Data {
			n.Data[k] = normalize(v)
		}
	}
	for i := range g.Variables {
		g.Variables[i].Value = normalize(g.Variables[i].Value)
	}
}

func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	default:
		return v
	}
}

// Summary is the listing form of a graph document.
type Summary struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Nodes int    `json:"nodes"`
	Path  string `json:"path"`
}

// Dir serves graphs from the documents under a directory. Files are read on
// every call so edits take effect on the next trigger.
type Dir struct {
	root   string
	layout graph.PinLayout
	logger *slog.Logger
}

// Option configures a Dir.
type Option func(*Dir)

// WithValidation makes LoadGraph reject graphs that fail graph.Validate
// against layout, usually the node type registry.
func WithValidation(layout graph.PinLayout) Option {
	return func(d *Dir) { d.layout = layout }
}

// WithLogger sets the logger used for skipped documents.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dir) { d.logger = logger }
}

// NewDir returns a store reading from root.
func NewDir(root string, opts ...Option) *Dir {
	d := &Dir{root: root, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// LoadGraph returns the graph declared with id. When several documents
// declare the same id, the first in lexical path order wins.
func (d *Dir) LoadGraph(ctx context.Context, id string) (*graph.Graph, error) {
	paths, err := fsutil.FindFilesByExtension(d.root, Extensions...)
	if err != nil {
		return nil, fmt.Errorf("listing graphs in %s: %w", d.root, err)
	}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, err := d.read(path)
		if err != nil {
			d.logger.Warn("Skipping unreadable graph file.", "path", path, "error", err)
			continue
		}
		if g.ID != id {
			continue
		}
		if d.layout != nil {
			if err := graph.Validate(g, d.layout); err != nil {
				return nil, fmt.Errorf("graph %s (%s): %w", id, path, err)
			}
		}
		return g, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// List returns every readable graph document.
func (d *Dir) List(ctx context.Context) ([]Summary, error) {
	paths, err := fsutil.FindFilesByExtension(d.root, Extensions...)
	if err != nil {
		return nil, fmt.Errorf("listing graphs in %s: %w", d.root, err)
	}
	out := make([]Summary, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, err := d.read(path)
		if err != nil {
			d.logger.Warn("Skipping unreadable graph file.", "path", path, "error", err)
			continue
		}
		out = append(out, Summary{ID: g.ID, Name: g.Name, Nodes: len(g.Nodes), Path: path})
	}
	return out, nil
}

func (d *Dir) read(path string) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(path, data)
}
