// Package pipeline runs the coverage and game exports end to end: query,
// flatten, write, then the optional Postgres load, object mirror and run
// ledger.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"pmtexport/internal/batch"
	"pmtexport/internal/flatten"
	"pmtexport/internal/query"
	"pmtexport/internal/store"
	"pmtexport/internal/tabular"
	"pmtexport/internal/util"
)

// Pipeline names recorded on each run.
const (
	PipelineGame     = "game"
	PipelineCoverage = "coverage"
)

// Loader stores a finished table.
type Loader interface {
	SaveExport(ctx context.Context, run store.Run, table *tabular.Table) error
}

// Recorder keeps the run history.
type Recorder interface {
	Record(ctx context.Context, run store.Run) error
}

// Uploader copies an output file elsewhere and returns where it went.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// Deps are the collaborators of an Exporter. Source is required; nil
// Loader, Ledger or Mirror disables that step.
type Deps struct {
	Source query.Source
	Loader Loader
	Ledger Recorder
	Mirror Uploader
	Logger *zap.Logger
	Now    func() time.Time
	NewID  func() string
}

// Options tunes output placement and flattening.
type Options struct {
	OutputDir      string
	SkipIncomplete bool
	// Compress appends tabular.ZstdSuffix to every output name.
	Compress bool
}

type Exporter struct {
	deps Deps
	opts Options
	log  *zap.Logger
}

func New(deps Deps, opts Options) *Exporter {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return util.NewID("run") }
	}
	return &Exporter{deps: deps, opts: opts, log: deps.Logger}
}

// ExportGame writes the full game table for sessions in window to
// outputName inside the output directory.
func (e *Exporter) ExportGame(ctx context.Context, window query.Window, outputName string) (store.Run, error) {
	q := query.Query{Filter: query.ByWindow(window), Projection: query.GameProjection}
	source := fmt.Sprintf("%s [%s, %s)", window.Site, window.From.Format(time.RFC3339), window.To.Format(time.RFC3339))
	return e.export(ctx, PipelineGame, source, flatten.GameSchema(), q, outputName)
}

// ExportCoverage writes coverage tables for the participant IDs listed in
// the batch files: one combined, timestamped file, or one file per batch.
func (e *Exporter) ExportCoverage(ctx context.Context, files []string, combine bool) ([]store.Run, error) {
	if len(files) == 0 {
		e.log.Warn("no batch files found")
	}

	if combine {
		e.log.Info("combining all batch files", zap.Int("files", len(files)))
		ids := make([]string, 0)
		for _, file := range files {
			batchIDs, err := batch.ReadIDs(file)
			if err != nil {
				return nil, err
			}
			ids = append(ids, batchIDs...)
		}
		q := query.Query{Filter: query.ByIDs(ids), Projection: query.CoverageProjection}
		name := batch.CombinedName(e.deps.Now())
		run, err := e.export(ctx, PipelineCoverage, fmt.Sprintf("%d batch files", len(files)), flatten.CoverageSchema(), q, name)
		if err != nil {
			return nil, err
		}
		return []store.Run{run}, nil
	}

	e.log.Info("keeping batch files separate", zap.Int("files", len(files)))
	runs := make([]store.Run, 0, len(files))
	for _, file := range files {
		ids, err := batch.ReadIDs(file)
		if err != nil {
			return runs, err
		}
		q := query.Query{Filter: query.ByIDs(ids), Projection: query.CoverageProjection}
		run, err := e.export(ctx, PipelineCoverage, filepath.Base(file), flatten.CoverageSchema(), q, batch.SeparateName(file))
		if err != nil {
			return runs, fmt.Errorf("%s: %w", filepath.Base(file), err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (e *Exporter) export(ctx context.Context, pipeline, source string, schema *flatten.Schema, q query.Query, name string) (store.Run, error) {
	run := store.Run{
		ID:        e.deps.NewID(),
		Pipeline:  pipeline,
		Source:    source,
		StartedAt: e.deps.Now(),
	}
	log := e.log.With(zap.String("run", run.ID), zap.String("pipeline", pipeline))

	docs, err := e.deps.Source.Fetch(ctx, q)
	if err != nil {
		return store.Run{}, fmt.Errorf("fetch participants: %w", err)
	}
	log.Info("fetched participants", zap.Int("participants", len(docs)), zap.String("source", source))

	res, err := flatten.FlattenWith(schema, docs, flatten.Options{SkipIncomplete: e.opts.SkipIncomplete})
	if err != nil {
		return store.Run{}, fmt.Errorf("flatten: %w", err)
	}
	for _, id := range res.Skipped {
		log.Warn("skipped participant without exploration data", zap.String("uuid", id))
	}
	run.Rows = res.Table.Len()
	run.Skipped = res.Skipped

	if e.opts.Compress {
		name += tabular.ZstdSuffix
	}
	run.Output = filepath.Join(e.opts.OutputDir, name)
	if err := tabular.Write(res.Table, run.Output); err != nil {
		return store.Run{}, fmt.Errorf("write %s: %w", run.Output, err)
	}

	if e.deps.Mirror != nil {
		key, err := e.deps.Mirror.Upload(ctx, run.Output)
		if err != nil {
			return store.Run{}, fmt.Errorf("mirror: %w", err)
		}
		run.ObjectKey = key
	}
	run.FinishedAt = e.deps.Now()

	if e.deps.Loader != nil {
		if err := e.deps.Loader.SaveExport(ctx, run, res.Table); err != nil {
			return store.Run{}, fmt.Errorf("load postgres: %w", err)
		}
	}
	if e.deps.Ledger != nil {
		if err := e.deps.Ledger.Record(ctx, run); err != nil {
			return store.Run{}, fmt.Errorf("record run: %w", err)
		}
	}

	log.Info("export written",
		zap.String("output", run.Output),
		zap.Int("rows", run.Rows),
		zap.Int("skipped", len(run.Skipped)),
		zap.Duration("elapsed", run.Duration()),
	)
	return run, nil
}
