// Package ingest turns scraped records into saved documents.
//
// Records are read from JSONL files holding one envelope per line:
//
//	{"class": "PersonItem", "fields": {"name": "John", "age": 22}}
//
// Each record populates an item of the named class, is validated and, when
// valid, saved.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/maruel/docitem/internal/document"
	errs "github.com/maruel/docitem/internal/errors"
	"github.com/maruel/docitem/internal/item"
	"github.com/maruel/docitem/internal/metrics"
	"github.com/maruel/docitem/internal/storage/git"
	"golang.org/x/time/rate"
)

// Envelope is one scraped record.
type Envelope struct {
	Class  string         `json:"class"`
	Fields map[string]any `json:"fields"`
}

// Failure describes a record that was not saved.
type Failure struct {
	Line  int         `json:"line"`
	Class string      `json:"class,omitempty"`
	Error *errs.Error `json:"error"`
}

// Report summarizes the ingestion of one file.
type Report struct {
	File      string    `json:"file"`
	Processed int       `json:"processed"`
	Saved     int       `json:"saved"`
	Invalid   int       `json:"invalid"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Pipeline validates and saves records.
type Pipeline struct {
	// Registry resolves envelope class names.
	Registry *item.Registry
	// Commit persists saved items through their class model.
	Commit bool
	// Exclude lists, per class name, the fields skipped during validation.
	Exclude map[string][]string
	// Limiter throttles saves when set.
	Limiter *rate.Limiter
	// Metrics is optional.
	Metrics *metrics.Metrics
	// Repo and DB, when both set, commit the store files after each file.
	Repo *git.Repo
	DB   *document.DB
}

// Process validates and saves one record. It returns the saved document or an
// *errors.Error; invalid records fail with code VALIDATION_FAILED.
func (p *Pipeline) Process(ctx context.Context, env Envelope) (*document.Document, error) {
	if env.Class == "" {
		return nil, errs.New(errs.ErrDecode, "record has no class")
	}
	c, ok := p.Registry.Lookup(env.Class)
	if !ok {
		return nil, errs.New(errs.ErrConfiguration, fmt.Sprintf("unknown item class %q", env.Class)).WithDetail("class", env.Class)
	}
	it, err := c.New(env.Fields)
	if err != nil {
		p.Metrics.Processed(env.Class, metrics.ResultFailed)
		return nil, errs.Classify(err)
	}
	if !it.IsValid(p.Exclude[env.Class]...) {
		fields := it.Errors()
		p.Metrics.Processed(env.Class, metrics.ResultInvalid)
		p.Metrics.ValidationErrors(env.Class, slices.Sorted(maps.Keys(fields)))
		return nil, errs.ValidationFailed(env.Class, fields)
	}
	if p.Limiter != nil {
		if err := p.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	start := time.Now()
	doc, err := it.Save(ctx, p.Commit)
	p.Metrics.ObserveSave(env.Class, time.Since(start))
	if err != nil {
		p.Metrics.Processed(env.Class, metrics.ResultFailed)
		return nil, errs.Classify(err)
	}
	p.Metrics.Processed(env.Class, metrics.ResultSaved)
	return doc, nil
}

// IngestFile processes every record of a JSONL file. Blank lines are skipped.
// Record failures are collected in the report; the returned error is for
// failures that stop the whole file.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*Report, error) {
	f, err := os.Open(path) //nolint:gosec // User-specified input path
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := &Report{File: path}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		r.Processed++
		var env Envelope
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&env); err != nil {
			r.fail(line, "", errs.Decode("invalid record", err))
			continue
		}
		if _, err := p.Process(ctx, env); err != nil {
			if ctx.Err() != nil {
				return r, ctx.Err()
			}
			e := errs.Classify(err)
			if e.Code() == errs.ErrValidationFailed {
				r.Invalid++
				r.Failures = append(r.Failures, Failure{Line: line, Class: env.Class, Error: e})
			} else {
				r.fail(line, env.Class, e)
			}
			slog.DebugContext(ctx, "Record rejected", "file", path, "line", line, "class", env.Class, "err", e)
			continue
		}
		r.Saved++
	}
	if err := scanner.Err(); err != nil {
		return r, fmt.Errorf("failed to read %s: %w", path, err)
	}
	slog.InfoContext(ctx, "Ingested file", "file", path, "processed", r.Processed, "saved", r.Saved, "invalid", r.Invalid, "failed", r.Failed)

	if p.Repo != nil && p.DB != nil && p.Commit && r.Saved > 0 {
		msg := fmt.Sprintf("ingest %s\n\n%d saved, %d invalid, %d failed", filepath.Base(path), r.Saved, r.Invalid, r.Failed)
		if err := p.Repo.Commit(ctx, git.Author{}, msg, p.DB.Files()); err != nil {
			return r, fmt.Errorf("failed to commit store: %w", err)
		}
	}
	return r, nil
}

func (r *Report) fail(line int, class string, e *errs.Error) {
	r.Failed++
	r.Failures = append(r.Failures, Failure{Line: line, Class: class, Error: e})
}
