// Implements the docitem subcommands.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/maruel/docitem/internal/config"
	"github.com/maruel/docitem/internal/document"
	"github.com/maruel/docitem/internal/ingest"
	"github.com/maruel/docitem/internal/metrics"
	"github.com/maruel/docitem/internal/storage/git"
)

// newPipeline opens the store and builds the configured classes.
func newPipeline(cfg *config.Config, m *metrics.Metrics) (*ingest.Pipeline, error) {
	db, err := document.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	reg, err := cfg.Build(db)
	if err != nil {
		return nil, err
	}
	p := &ingest.Pipeline{
		Registry: reg,
		Commit:   cfg.Commit,
		Exclude:  cfg.Exclusions(),
		Limiter:  cfg.Limiter(),
		Metrics:  m,
		DB:       db,
	}
	if cfg.Git.Enabled {
		if p.Repo, err = git.Open(cfg.DataDir, cfg.Git.AuthorName, cfg.Git.AuthorEmail); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func cmdIngest(ctx context.Context, cfg *config.Config, m *metrics.Metrics, args []string) error {
	if len(args) == 0 {
		return errors.New("ingest: at least one file is required")
	}
	p, err := newPipeline(cfg, m)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	var failed []string
	for _, path := range args {
		r, err := p.IngestFile(ctx, path)
		if r != nil {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			slog.ErrorContext(ctx, "Failed to ingest file", "file", path, "err", err)
			failed = append(failed, path)
		}
	}
	if len(failed) != 0 {
		return fmt.Errorf("failed to ingest %s", strings.Join(failed, ", "))
	}
	return nil
}

func cmdWatch(ctx context.Context, cfg *config.Config, m *metrics.Metrics, args []string) error {
	if len(args) != 1 {
		return errors.New("watch: exactly one directory is required")
	}
	p, err := newPipeline(cfg, m)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Watching directory", "dir", args[0], "commit", cfg.Commit)
	return ingest.Watch(ctx, args[0], func(ctx context.Context, path string) error {
		_, err := p.IngestFile(ctx, path)
		return err
	})
}

func cmdSchema(cfg *config.Config, args []string) error {
	if len(args) > 1 {
		return errors.New("schema: at most one schema name is accepted")
	}
	var out []*jsonschema.Schema
	for i := range cfg.Schemas {
		if len(args) == 1 && cfg.Schemas[i].Name != args[0] {
			continue
		}
		s, err := cfg.Schemas[i].Build()
		if err != nil {
			return err
		}
		out = append(out, s.JSONSchema())
	}
	if len(args) == 1 && len(out) == 0 {
		return fmt.Errorf("unknown schema %q", args[0])
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if len(out) == 1 {
		return enc.Encode(out[0])
	}
	return enc.Encode(out)
}

func cmdClasses(cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return errors.New("classes: no argument is accepted")
	}
	reg, err := cfg.Build(nil)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLASS\tPARENT\tSCHEMA\tFIELDS")
	for _, name := range reg.Names() {
		c, _ := reg.Lookup(name)
		parent := "-"
		if c.Parent() != nil {
			parent = c.Parent().Name()
		}
		fields := make([]string, 0, len(c.FieldNames()))
		for _, f := range c.Fields() {
			switch {
			case f.PrimaryKey:
				fields = append(fields, f.Name+"*")
			case !f.FromSchema():
				fields = append(fields, f.Name+"+")
			default:
				fields = append(fields, f.Name)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, parent, c.Schema().Name(), strings.Join(fields, " "))
	}
	return w.Flush()
}

func cmdFind(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 3 {
		return errors.New("find: a schema, a field and a value are required")
	}
	spec, err := schemaSpec(cfg, args[0])
	if err != nil {
		return err
	}
	s, err := spec.Build()
	if err != nil {
		return err
	}
	db, err := document.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	c, err := db.Collection(s)
	if err != nil {
		return err
	}
	// The value is JSON when it parses as such, a bare string otherwise.
	var value any = args[2]
	dec := json.NewDecoder(strings.NewReader(args[2]))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err == nil && !dec.More() {
		value = v
	}
	docs, err := c.Find(ctx, args[1], value)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	for _, d := range docs {
		if err := enc.Encode(map[string]any{"id": d.ID(), "modified": d.Modified(), "data": d}); err != nil {
			return err
		}
	}
	return nil
}

func cmdHistory(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return errors.New("history: a schema and an optional commit hash are required")
	}
	if !cfg.Git.Enabled {
		return errors.New("history: git is not enabled in the configuration")
	}
	if _, err := schemaSpec(cfg, args[0]); err != nil {
		return err
	}
	repo, err := git.Open(cfg.DataDir, cfg.Git.AuthorName, cfg.Git.AuthorEmail)
	if err != nil {
		return err
	}
	file := document.FileName(args[0])
	if len(args) == 2 {
		data, err := repo.FileAt(ctx, args[1], file)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}
	commits, err := repo.History(ctx, file, 0)
	if err != nil {
		return err
	}
	total, err := repo.CommitCount(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COMMIT\tDATE\tAUTHOR\tMESSAGE")
	for _, c := range commits {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Hash[:12], c.AuthorDate.Format(time.DateTime), c.Author, c.Message)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	slog.InfoContext(ctx, "History", "file", file, "commits", len(commits), "total", total)
	return nil
}

func schemaSpec(cfg *config.Config, name string) (*document.SchemaSpec, error) {
	for i := range cfg.Schemas {
		if cfg.Schemas[i].Name == name {
			return &cfg.Schemas[i], nil
		}
	}
	return nil, fmt.Errorf("unknown schema %q", name)
}
