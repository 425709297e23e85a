// Package config loads the manifest that lists files to expose as views and
// queries to run against them.
package config

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/connerohnesorge/dukdb-stream/internal/source"
)

// Manifest is the top-level manifest document
type Manifest struct {
	Threads int      `yaml:"threads"`
	Views   []View   `yaml:"views"`
	Queries []string `yaml:"queries"`
}

// View is a file registered under a view name
type View struct {
	Name      string   `yaml:"name"`
	Path      string   `yaml:"path"`
	Format    string   `yaml:"format"`
	BatchSize int      `yaml:"batch_size"`
	Columns   []Column `yaml:"columns"`
}

// Column declares a column of a csv or ndjson view
type Column struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Load reads and validates the manifest at fname. Relative view paths are
// resolved against the manifest's directory.
func Load(fname string) (*Manifest, error) {
	data, err := os.ReadFile(fname) // nolint gosec
	if err != nil {
		return nil, fmt.Errorf("can't read manifest %s: %w", fname, err)
	}

	res, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", fname, err)
	}

	dir := filepath.Dir(fname)
	for i, v := range res.Views {
		if v.Path != "" && !filepath.IsAbs(v.Path) {
			res.Views[i].Path = filepath.Join(dir, v.Path)
		}
	}
	log.Printf("[DEBUG] loaded manifest %s, %d views, %d queries", fname, len(res.Views), len(res.Queries))
	return res, nil
}

// Parse decodes and validates a manifest, failing on unknown fields
func Parse(data []byte) (*Manifest, error) {
	res := &Manifest{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(res); err != nil {
		return nil, fmt.Errorf("can't unmarshal manifest: %w", err)
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// Validate reports every problem in the manifest at once
func (m *Manifest) Validate() error {
	errs := new(multierror.Error)
	if m.Threads < 0 {
		errs = multierror.Append(errs, fmt.Errorf("threads must not be negative, got %d", m.Threads))
	}

	names := make(map[string]bool)
	for i, v := range m.Views {
		label := v.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
			errs = multierror.Append(errs, fmt.Errorf("view %s: name is required", label))
		}
		if v.Name != "" && names[strings.ToLower(v.Name)] {
			errs = multierror.Append(errs, fmt.Errorf("duplicate view name %q", v.Name))
		}
		names[strings.ToLower(v.Name)] = true

		if v.Path == "" {
			errs = multierror.Append(errs, fmt.Errorf("view %s: path is required", label))
		}
		switch source.Format(v.Format) {
		case "", source.CSV, source.NDJSON, source.Parquet:
		default:
			errs = multierror.Append(errs, fmt.Errorf("view %s: unknown format %q", label, v.Format))
		}
		if v.BatchSize < 0 {
			errs = multierror.Append(errs, fmt.Errorf("view %s: batch_size must not be negative", label))
		}
		for _, c := range v.Columns {
			if c.Name == "" {
				errs = multierror.Append(errs, fmt.Errorf("view %s: column name is required", label))
			}
			if _, err := source.ParseType(c.Type); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("view %s, column %s: %w", label, c.Name, err))
			}
		}
	}

	for i, q := range m.Queries {
		if strings.TrimSpace(q) == "" {
			errs = multierror.Append(errs, fmt.Errorf("query #%d is empty", i+1))
		}
	}
	return errs.ErrorOrNil()
}

// Spec converts the view into a source spec
func (v View) Spec() source.Spec {
	cols := make([]source.Column, len(v.Columns))
	for i, c := range v.Columns {
		cols[i] = source.Column{Name: c.Name, Type: c.Type}
	}
	return source.Spec{Path: v.Path, Format: source.Format(v.Format), BatchSize: v.BatchSize, Columns: cols}
}

// ParseView parses a "name=path" view argument
func ParseView(arg string) (View, error) {
	name, path, ok := strings.Cut(arg, "=")
	name, path = strings.TrimSpace(name), strings.TrimSpace(path)
	if !ok || name == "" || path == "" {
		return View{}, fmt.Errorf("invalid view %q, expected name=path", arg)
	}
	return View{Name: name, Path: path}, nil
}
