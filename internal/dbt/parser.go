// Package dbt turns dbt artifacts into catalog entities. A Parser walks one
// manifest in two passes: the first declares and populates every model,
// source and macro; the second resolves dependency edges, tests and metrics
// against the first pass's indexes, so forward references always resolve.
package dbt

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapmeta/internal/config"
	"github.com/leapstack-labs/leapmeta/internal/lineage"
	"github.com/leapstack-labs/leapmeta/internal/manifest"
	"github.com/leapstack-labs/leapmeta/internal/registry"
	"github.com/leapstack-labs/leapmeta/pkg/core"
)

// ParserConfig holds the harvesting options of a parse.
type ParserConfig struct {
	// Platform overrides the platform derived from metadata.adapter_type
	Platform         core.DataPlatform
	Account          string
	DocsBaseURL      string
	ProjectSourceURL string
	MetaOwnerships   []config.MetaOwnership
	MetaTags         []config.MetaTag
	Logger           *slog.Logger
}

// ParserConfigFrom extracts the parser options of a validated run
// configuration.
func ParserConfigFrom(cfg *config.Config, logger *slog.Logger) ParserConfig {
	var platform core.DataPlatform
	if p, ok := core.ParsePlatform(cfg.Platform); ok {
		platform = p
	}
	return ParserConfig{
		Platform:         platform,
		Account:          cfg.Account,
		DocsBaseURL:      cfg.DocsBaseURL,
		ProjectSourceURL: cfg.ProjectSourceURL,
		MetaOwnerships:   cfg.MetaOwnerships,
		MetaTags:         cfg.MetaTags,
		Logger:           logger,
	}
}

type phase int

const (
	phaseIdle phase = iota
	phaseSchemaSelected
	phaseDeclared
	phasePopulated
	phaseResolved
	phaseDone
)

// Parser parses exactly one manifest into an accumulator.
// Several parsers may share one accumulator; merges never duplicate.
type Parser struct {
	cfg    ParserConfig
	acc    *registry.Accumulator
	logger *slog.Logger
	tags   []tagRule

	phase    phase
	manifest *manifest.Manifest
	idx      *lineage.Index
	report   *Report
}

// NewParser creates a parser that writes into acc.
func NewParser(cfg ParserConfig, acc *registry.Accumulator) (*Parser, error) {
	if acc == nil {
		return nil, errors.New("accumulator is required")
	}
	for i, o := range cfg.MetaOwnerships {
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("meta_ownerships[%d]: %w", i, err)
		}
	}
	tags, err := compileTagRules(cfg.MetaTags)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Parser{
		cfg:    cfg,
		acc:    acc,
		logger: logger,
		tags:   tags,
		idx:    lineage.NewIndex(),
		report: &Report{},
	}, nil
}

// Parse selects the schema of doc, decodes it and runs both passes.
// A parser accepts one document; later calls return core.ErrParserUsed.
func (p *Parser) Parse(doc map[string]any) (*Report, error) {
	if p.phase != phaseIdle {
		return nil, core.ErrParserUsed
	}
	desc, err := manifest.SelectSchema(doc)
	if err != nil {
		p.phase = phaseDone
		return nil, err
	}
	p.phase = phaseSchemaSelected
	p.logger.Debug("selected manifest schema", "tag", desc.Tag, "shape", desc.Name)

	m, err := manifest.DecodeAs(doc, desc)
	if err != nil {
		p.phase = phaseDone
		return nil, err
	}
	p.manifest = m
	for _, invalid := range m.Invalid {
		p.logger.Warn("dropping malformed entry", "section", invalid.Section, "node", invalid.ID, "error", invalid.Err)
		p.report.warn(invalid.ID, "entry does not match schema "+desc.Name, invalid)
	}
	p.report.SchemaVersion = desc.Tag
	p.report.Shape = desc.Name
	p.resolvePlatform()

	p.declare()
	p.populate()
	p.resolve()

	p.phase = phaseDone
	p.logger.Info("parsed manifest",
		"schema", desc.Tag,
		"models", p.report.Models,
		"sources", p.report.Sources,
		"tests", p.report.Tests,
		"metrics", p.report.Metrics,
		"warnings", p.report.Warnings())
	return p.report, nil
}

// ParseBytes parses a raw manifest.json.
func (p *Parser) ParseBytes(data []byte) (*Report, error) {
	doc, err := manifest.ParseJSON(data)
	if err != nil {
		if p.phase == phaseIdle {
			p.phase = phaseDone
		}
		return nil, err
	}
	return p.Parse(doc)
}

// Index exposes the opaque-ID indexes built by the first pass.
func (p *Parser) Index() *lineage.Index {
	return p.idx
}

func (p *Parser) resolvePlatform() {
	switch {
	case p.cfg.Platform != "":
		p.acc.Platform = p.cfg.Platform
	case p.acc.Platform == "":
		platform, ok := core.ParsePlatform(p.manifest.Metadata.AdapterType)
		if !ok {
			p.logger.Warn("unknown adapter type", "adapter", p.manifest.Metadata.AdapterType)
			p.report.warn("metadata", "unknown adapter type "+p.manifest.Metadata.AdapterType, nil)
		}
		p.acc.Platform = platform
	}
	if p.cfg.Account != "" {
		p.acc.Account = p.cfg.Account
	}
	p.report.Platform = p.acc.Platform
}

// declare creates an empty virtual view for every model so that the second
// pass can resolve references regardless of document order.
func (p *Parser) declare() {
	for _, id := range sortedKeys(p.manifest.Nodes) {
		if p.manifest.Nodes[id].Kind != manifest.KindModel {
			continue
		}
		p.acc.DeclareVirtualView(id)
		p.idx.Models[id] = registry.VirtualViewID(id)
	}
	p.phase = phaseDeclared
}

func (p *Parser) populate() {
	for _, id := range sortedKeys(p.manifest.Sources) {
		p.populateSource(id, p.manifest.Sources[id])
	}
	for _, id := range sortedKeys(p.manifest.Macros) {
		p.populateMacro(id, p.manifest.Macros[id])
	}
	for _, id := range sortedKeys(p.manifest.Nodes) {
		if n := p.manifest.Nodes[id]; n.Kind == manifest.KindModel {
			p.populateModel(id, n)
		}
	}
	p.phase = phasePopulated
}

func (p *Parser) resolve() {
	for _, id := range sortedKeys(p.manifest.Nodes) {
		if n := p.manifest.Nodes[id]; n.Kind == manifest.KindModel {
			p.resolveModel(id, n)
		}
	}
	for _, id := range sortedKeys(p.manifest.Nodes) {
		if n := p.manifest.Nodes[id]; n.Kind == manifest.KindTest {
			p.resolveTest(id, n)
		}
	}
	for _, id := range sortedKeys(p.manifest.Metrics) {
		p.resolveMetric(id, p.manifest.Metrics[id])
	}
	p.phase = phaseResolved
}

func (p *Parser) populateSource(id string, s *manifest.Source) {
	p.idx.Sources[id] = p.acc.DatasetID(s.Database, s.Schema, s.Table())
	p.report.Sources++
	if s.Database == "" || len(s.Columns) == 0 {
		return
	}

	ds := p.acc.Dataset(s.Database, s.Schema, s.Table())
	docs := registry.Facet(&ds.Documentation)
	if s.Description != "" {
		docs.DatasetDocumentations = registry.AppendUnique(docs.DatasetDocumentations, s.Description)
	}
	for _, key := range sortedKeys(s.Columns) {
		col := s.Columns[key]
		if col.Description == "" {
			continue
		}
		docs.FieldDocumentations = registry.MergeFieldDoc(docs.FieldDocumentations, core.FieldDocumentation{
			FieldPath:     strings.ToLower(columnName(key, col)),
			Documentation: col.Description,
		})
	}
}

func (p *Parser) populateMacro(id string, m *manifest.Macro) {
	macro := core.DbtMacro{
		Name:            m.Name,
		UniqueID:        id,
		PackageName:     m.PackageName,
		Description:     m.Description,
		SQL:             m.MacroSQL,
		DependsOnMacros: registry.Unique(m.DependencyMacros()),
	}
	for _, a := range m.Arguments {
		macro.Arguments = append(macro.Arguments, core.DbtMacroArgument{
			Name:        a.Name,
			Type:        a.Type,
			Description: a.Description,
		})
	}
	p.idx.Macros[id] = macro
	p.report.Macros++
}

func (p *Parser) populateModel(id string, n *manifest.Node) {
	if n.Config == nil || n.Database == "" {
		p.logger.Warn("skipping model without config or database", "model", id)
		p.report.warn(id, "model has no config or database", nil)
		p.report.SkippedModels++
		return
	}
	view, ok := p.acc.VirtualViews.Get(id)
	if !ok {
		view, _ = p.acc.DeclareVirtualView(id)
	}
	dm := registry.Facet(&view.DbtModel)

	url := sourceCodeURL(p.cfg.ProjectSourceURL, n.OriginalFilePath)
	registry.SetString(&dm.Name, n.Name)
	registry.SetString(&dm.PackageName, n.PackageName)
	registry.SetString(&dm.Description, n.Description)
	registry.SetString(&dm.URL, url)
	registry.SetString(&dm.DocsURL, modelDocsURL(p.cfg.DocsBaseURL, id))
	registry.SetString(&dm.RawSQL, n.RawSQL())
	registry.SetString(&dm.CompiledSQL, n.CompiledSQL())
	dm.Tags = registry.AppendUnique(dm.Tags, n.Tags...)

	if n.Config.Materialized != "" {
		typ := core.ParseMaterialization(n.Config.Materialized)
		target := p.acc.DatasetID(n.Database, n.Schema, n.RelationName())
		registry.SetPtr(&dm.Materialization, &core.DbtMaterialization{
			Type:          typ,
			TargetDataset: string(target),
		})
		if typ.Persisted() {
			p.idx.Targets[id] = target
			p.applyMeta(n)
		}
	}

	for _, key := range sortedKeys(n.Columns) {
		col := n.Columns[key]
		nativeType := col.DataType
		if nativeType == "" {
			nativeType = core.NativeTypeNotSet
		}
		dm.Fields = registry.MergeField(dm.Fields, core.SchemaField{
			FieldPath:   strings.ToLower(columnName(key, col)),
			Description: col.Description,
			NativeType:  nativeType,
		})
	}

	p.acc.VirtualViews.MarkPopulated(id)
	p.report.Models++
}

// applyMeta maps model meta to ownerships and tags of the materialized dataset.
func (p *Parser) applyMeta(n *manifest.Node) {
	meta := n.EffectiveMeta()
	if len(meta) == 0 {
		return
	}
	owners := ownershipsFromMeta(meta, p.cfg.MetaOwnerships)
	tags := tagsFromMeta(meta, p.tags)
	if len(owners) == 0 && len(tags) == 0 {
		return
	}
	ds := p.acc.Dataset(n.Database, n.Schema, n.RelationName())
	if len(owners) > 0 {
		oa := registry.Facet(&ds.OwnershipAssignment)
		for _, o := range owners {
			oa.Ownerships = registry.MergeOwnership(oa.Ownerships, o)
		}
	}
	if len(tags) > 0 {
		ta := registry.Facet(&ds.TagAssignment)
		ta.TagNames = registry.AppendUnique(ta.TagNames, tags...)
	}
}

func (p *Parser) resolveModel(id string, n *manifest.Node) {
	if p.acc.VirtualViews.State(id) != registry.Populated {
		return
	}
	view, _ := p.acc.VirtualViews.Get(id)
	dm := view.DbtModel

	edges, errs := lineage.Build(id, n.DependencyNodes(), n.DependencyMacros(), p.idx)
	p.dangling(errs)
	dm.SourceDatasets = registry.AppendUnique(dm.SourceDatasets, edges.SourceDatasets...)
	dm.SourceModels = registry.AppendUnique(dm.SourceModels, edges.SourceModels...)
	for _, m := range edges.Macros {
		dm.Macros = registry.MergeMacro(dm.Macros, m)
	}

	target, ok := p.idx.Targets[id]
	if !ok {
		return
	}
	// an incremental model may read the relation it writes to
	upstream := slices.DeleteFunc(lineage.DatasetUpstream(n.DependencyNodes(), p.idx), func(up string) bool {
		return up == string(target)
	})
	if len(upstream) == 0 && dm.URL == "" {
		return
	}
	ds := p.acc.Dataset(n.Database, n.Schema, n.RelationName())
	up := registry.Facet(&ds.Upstream)
	up.SourceDatasets = registry.AppendUnique(up.SourceDatasets, upstream...)
	registry.SetString(&up.SourceCodeURL, dm.URL)
}

// resolveTest attaches a test to the model it depends on first. Tests on
// sources, or with no dependency at all, are skipped.
func (p *Parser) resolveTest(id string, n *manifest.Node) {
	deps := n.DependencyNodes()
	if len(deps) == 0 || !strings.HasPrefix(deps[0], manifest.PrefixModel) {
		p.report.SkippedTests++
		return
	}
	model := deps[0]
	view, ok := p.acc.VirtualViews.Get(model)
	if !ok {
		p.dangling([]error{&core.DanglingReferenceError{Node: id, Missing: model}})
		p.report.SkippedTests++
		return
	}

	var columns []string
	if len(n.Columns) > 0 {
		for _, key := range sortedKeys(n.Columns) {
			columns = append(columns, columnName(key, n.Columns[key]))
		}
	} else if n.ColumnName != "" {
		columns = []string{n.ColumnName}
	}

	dm := registry.Facet(&view.DbtModel)
	dm.Tests = registry.MergeTest(dm.Tests, core.DbtTest{
		Name:            n.Name,
		UniqueID:        id,
		Columns:         columns,
		DependsOnMacros: registry.Unique(n.DependencyMacros()),
		SQL:             n.CompiledSQL(),
	})
	p.report.Tests++
}

func (p *Parser) resolveMetric(id string, m *manifest.Metric) {
	metric := p.acc.Metric(id)
	dm := registry.Facet(&metric.DbtMetric)

	sql, calculation := m.Definition()
	registry.SetString(&dm.PackageName, m.PackageName)
	registry.SetString(&dm.Description, m.Description)
	registry.SetString(&dm.Label, m.Label)
	registry.SetString(&dm.Timestamp, m.Timestamp)
	registry.SetString(&dm.URL, metricDocsURL(p.cfg.DocsBaseURL, id))
	registry.SetString(&dm.SQL, sql)
	registry.SetString(&dm.Type, calculation)
	dm.Tags = registry.AppendUnique(dm.Tags, m.Tags...)
	dm.TimeGrains = registry.AppendUnique(dm.TimeGrains, m.TimeGrains...)
	dm.Dimensions = registry.AppendUnique(dm.Dimensions, m.Dimensions...)
	for _, f := range m.Filters {
		dm.Filters = registry.AppendUnique(dm.Filters, core.MetricFilter{
			Field:    f.Field,
			Operator: f.Operator,
			Value:    f.Value,
		})
	}

	edges, errs := lineage.Build(id, m.DependencyNodes(), nil, p.idx)
	p.dangling(errs)
	dm.SourceDatasets = registry.AppendUnique(dm.SourceDatasets, edges.SourceDatasets...)
	dm.SourceModels = registry.AppendUnique(dm.SourceModels, edges.SourceModels...)
	p.report.Metrics++
}

func (p *Parser) dangling(errs []error) {
	for _, err := range errs {
		var dr *core.DanglingReferenceError
		if errors.As(err, &dr) {
			p.logger.Warn("dropping dangling reference", "node", dr.Node, "missing", dr.Missing)
			p.report.warn(dr.Node, "dangling reference", err)
			continue
		}
		p.report.warn("", err.Error(), err)
	}
}

func columnName(key string, col manifest.Column) string {
	if col.Name != "" {
		return col.Name
	}
	return key
}
