package dbt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/leapstack-labs/leapmeta/internal/config"
	"github.com/leapstack-labs/leapmeta/internal/lineage"
	"github.com/leapstack-labs/leapmeta/internal/manifest"
	"github.com/leapstack-labs/leapmeta/internal/registry"
	"github.com/leapstack-labs/leapmeta/pkg/core"
	"golang.org/x/sync/errgroup"
)

// ArtifactReader fetches raw artifacts by URI.
type ArtifactReader interface {
	Read(ctx context.Context, uri string) ([]byte, error)
}

// Result is the outcome of one extraction.
type Result struct {
	Entities     registry.Entities
	Report       *Report
	ManifestHash string
	// Catalog and RunResults count the relations and tests they updated
	Catalog    int
	RunResults int
	Duration   time.Duration
}

// Events returns the metadata change events of the extraction, datasets first.
func (r *Result) Events() []core.MetadataChangeEvent {
	return r.Entities.Events()
}

// Edges returns the lineage edges of the extraction.
func (r *Result) Edges() []core.LineageEdge {
	return lineage.Collect(r.Entities)
}

// Extractor loads the configured artifacts and turns them into entities.
type Extractor struct {
	cfg    *config.Config
	reader ArtifactReader
	logger *slog.Logger
}

// NewExtractor creates an extractor. cfg must already be validated.
func NewExtractor(cfg *config.Config, reader ArtifactReader, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{cfg: cfg, reader: reader, logger: logger}
}

type artifacts struct {
	manifest    []byte
	manifestDoc map[string]any
	catalog     map[string]any
	runResults  map[string]any
}

// Extract fetches the artifacts concurrently, then parses and merges them in
// a fixed order: manifest, catalog, run results.
func (e *Extractor) Extract(ctx context.Context) (*Result, error) {
	start := time.Now()
	art, err := e.fetch(ctx)
	if err != nil {
		return nil, err
	}

	acc := registry.NewAccumulator("", e.cfg.Account)
	parser, err := NewParser(ParserConfigFrom(e.cfg, e.logger), acc)
	if err != nil {
		return nil, err
	}
	report, err := parser.Parse(art.manifestDoc)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", e.cfg.Manifest, err)
	}

	res := &Result{
		Report:       report,
		ManifestHash: fmt.Sprintf("%016x", xxhash.Sum64(art.manifest)),
	}
	if art.catalog != nil {
		cat, err := manifest.DecodeCatalog(art.catalog)
		if err != nil {
			return nil, fmt.Errorf("decode catalog %s: %w", e.cfg.Catalog, err)
		}
		res.Catalog = ApplyCatalog(acc, cat, e.logger)
	}
	if art.runResults != nil {
		rr, err := manifest.DecodeRunResults(art.runResults)
		if err != nil {
			return nil, fmt.Errorf("decode run results %s: %w", e.cfg.RunResults, err)
		}
		res.RunResults = ApplyRunResults(acc, rr, e.logger)
	}

	res.Entities = acc.Drain()
	res.Duration = time.Since(start)
	e.logger.Info("extraction complete",
		"entities", res.Entities.Len(),
		"warnings", report.Warnings(),
		"duration", res.Duration)
	return res, nil
}

func (e *Extractor) fetch(ctx context.Context) (*artifacts, error) {
	var art artifacts
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.cfg.MaxConcurrency, 1))

	g.Go(func() error {
		data, err := e.reader.Read(gctx, e.cfg.Manifest)
		if err != nil {
			return err
		}
		doc, err := manifest.ParseJSON(data)
		if err != nil {
			return fmt.Errorf("manifest %s: %w", e.cfg.Manifest, err)
		}
		art.manifest, art.manifestDoc = data, doc
		return nil
	})
	if e.cfg.Catalog != "" {
		g.Go(func() error {
			doc, err := e.load(gctx, e.cfg.Catalog)
			art.catalog = doc
			return err
		})
	}
	if e.cfg.RunResults != "" {
		g.Go(func() error {
			doc, err := e.load(gctx, e.cfg.RunResults)
			art.runResults = doc
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &art, nil
}

func (e *Extractor) load(ctx context.Context, uri string) (map[string]any, error) {
	data, err := e.reader.Read(ctx, uri)
	if err != nil {
		return nil, err
	}
	doc, err := manifest.ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", uri, err)
	}
	return doc, nil
}
