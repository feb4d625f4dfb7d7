// Loads the YAML configuration declaring schemas, item classes and runtime
// settings.

// Package config loads docitem configuration files.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/maruel/docitem/internal/document"
	"github.com/maruel/docitem/internal/item"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Config is the content of a configuration file.
type Config struct {
	DataDir string  `yaml:"data_dir"`
	Commit  bool    `yaml:"commit"`
	Rate    float64 `yaml:"rate,omitempty"` // saves per second; 0 disables throttling
	Burst   int     `yaml:"burst,omitempty"`
	Git     Git     `yaml:"git"`

	Schemas []document.SchemaSpec `yaml:"schemas"`
	Items   []Item                `yaml:"items"`
}

// Git configures history of the data directory.
type Git struct {
	Enabled     bool   `yaml:"enabled"`
	AuthorName  string `yaml:"author_name,omitempty"`
	AuthorEmail string `yaml:"author_email,omitempty"`
}

// Item declares an item class. Root classes name a schema; subclasses name
// their parent.
type Item struct {
	Name    string   `yaml:"name"`
	Schema  string   `yaml:"schema,omitempty"`
	Parent  string   `yaml:"parent,omitempty"`
	Fields  []Field  `yaml:"fields,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// Field declares a field added or redefined by an item class.
type Field struct {
	Name string         `yaml:"name"`
	Meta map[string]any `yaml:"meta,omitempty"`
}

// Default returns the configuration used for keys a file omits.
func Default() *Config {
	return &Config{
		DataDir: "data",
		Commit:  true,
		Burst:   1,
		Git: Git{
			AuthorName:  "docitem",
			AuthorEmail: "docitem@localhost",
		},
	}
}

// Load reads and parses a configuration file.
// The path is provided by the CLI user, so file inclusion is expected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-specified config path
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse parses a configuration from bytes on top of Default.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// Validate checks that the configuration is consistent.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate must not be negative, got %v", c.Rate)
	}
	if c.Rate > 0 && c.Burst < 1 {
		return fmt.Errorf("burst must be at least 1 when rate is set, got %d", c.Burst)
	}
	if c.Git.Enabled && (c.Git.AuthorName == "" || c.Git.AuthorEmail == "") {
		return errors.New("git: author_name and author_email are required")
	}

	schemas := make(map[string]bool, len(c.Schemas))
	for i := range c.Schemas {
		s := &c.Schemas[i]
		if s.Name == "" {
			return fmt.Errorf("schema %d: name is required", i)
		}
		if schemas[s.Name] {
			return fmt.Errorf("schema %s: declared twice", s.Name)
		}
		schemas[s.Name] = true
	}

	items := make(map[string]*Item, len(c.Items))
	for i := range c.Items {
		it := &c.Items[i]
		if it.Name == "" {
			return fmt.Errorf("item %d: name is required", i)
		}
		if items[it.Name] != nil {
			return fmt.Errorf("item %s: declared twice", it.Name)
		}
		items[it.Name] = it
		switch {
		case it.Schema != "" && it.Parent != "":
			return fmt.Errorf("item %s: schema and parent are mutually exclusive", it.Name)
		case it.Schema == "" && it.Parent == "":
			return fmt.Errorf("item %s: schema or parent is required", it.Name)
		case it.Schema != "" && !schemas[it.Schema]:
			return fmt.Errorf("item %s: unknown schema %q", it.Name, it.Schema)
		}
		for j := range it.Fields {
			if it.Fields[j].Name == "" {
				return fmt.Errorf("item %s, field %d: name is required", it.Name, j)
			}
		}
	}
	for i := range c.Items {
		seen := map[string]bool{}
		for it := &c.Items[i]; it.Parent != ""; {
			if seen[it.Name] {
				return fmt.Errorf("item %s: inheritance cycle", c.Items[i].Name)
			}
			seen[it.Name] = true
			p := items[it.Parent]
			if p == nil {
				return fmt.Errorf("item %s: unknown parent %q", it.Name, it.Parent)
			}
			it = p
		}
	}
	return nil
}

// Limiter returns the save throttle, or nil when throttling is disabled.
func (c *Config) Limiter() *rate.Limiter {
	if c.Rate <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.Rate), c.Burst)
}

// Exclusions returns the fields each item class skips during validation.
// Subclasses without an exclude list inherit their parent's.
func (c *Config) Exclusions() map[string][]string {
	byName := make(map[string]*Item, len(c.Items))
	for i := range c.Items {
		byName[c.Items[i].Name] = &c.Items[i]
	}
	out := make(map[string][]string, len(c.Items))
	for i := range c.Items {
		for it := &c.Items[i]; it != nil; it = byName[it.Parent] {
			if it.Exclude != nil {
				out[c.Items[i].Name] = it.Exclude
				break
			}
		}
	}
	return out
}

// Build defines the configured schemas and item classes.
//
// Root classes are backed by the collection of their schema in db, so their
// items can be committed. When db is nil, classes are backed by the bare
// schema.
func (c *Config) Build(db *document.DB) (*item.Registry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	models := make(map[string]item.Model, len(c.Schemas))
	for i := range c.Schemas {
		s, err := c.Schemas[i].Build()
		if err != nil {
			return nil, err
		}
		if db == nil {
			models[s.Name()] = s
			continue
		}
		col, err := db.Collection(s)
		if err != nil {
			return nil, err
		}
		models[s.Name()] = col
	}

	decls := make(map[string]*Item, len(c.Items))
	for i := range c.Items {
		decls[c.Items[i].Name] = &c.Items[i]
	}
	classes := make(map[string]*item.Class, len(c.Items))
	var define func(d *Item) (*item.Class, error)
	define = func(d *Item) (*item.Class, error) {
		if cl, ok := classes[d.Name]; ok {
			return cl, nil
		}
		fields := make([]item.Field, len(d.Fields))
		for i, f := range d.Fields {
			fields[i] = item.Field{Name: f.Name, Meta: f.Meta}
		}
		var cl *item.Class
		var err error
		if d.Parent == "" {
			model, ok := models[d.Schema]
			if !ok {
				return nil, fmt.Errorf("item %s: unknown schema %q", d.Name, d.Schema)
			}
			cl, err = item.Define(d.Name, model, fields...)
		} else {
			pd, ok := decls[d.Parent]
			if !ok {
				return nil, fmt.Errorf("item %s: unknown parent %q", d.Name, d.Parent)
			}
			var parent *item.Class
			if parent, err = define(pd); err != nil {
				return nil, err
			}
			cl, err = parent.Extend(d.Name, fields...)
		}
		if err != nil {
			return nil, err
		}
		classes[d.Name] = cl
		return cl, nil
	}

	reg := item.NewRegistry()
	for i := range c.Items {
		cl, err := define(&c.Items[i])
		if err != nil {
			return nil, err
		}
		if err := reg.Register(cl); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
