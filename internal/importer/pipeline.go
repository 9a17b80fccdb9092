// Package importer runs the bulk spreadsheet import wizard: upload, row
// preview and editing, margin selection, charge selection, and the final
// review that commits the calculated batch.
package importer

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Simplici0/tradedesk/internal/apperr"
	"github.com/Simplici0/tradedesk/internal/logging"
	"github.com/Simplici0/tradedesk/internal/pricing"
)

// Stage is a step of the import wizard.
type Stage string

const (
	StageUpload       Stage = "upload"
	StagePreview      Stage = "preview"
	StageMargins      Stage = "margins"
	StageCosts        Stage = "costs"
	StageFinalPreview Stage = "finalPreview"
	StageCommitted    Stage = "committed"
	StageCancelled    Stage = "cancelled"
)

// CatalogReader supplies the charge catalog.
type CatalogReader interface {
	ChargesByCountry(ctx context.Context) (pricing.Catalog, error)
}

// BatchRequest is what the wizard sends for calculation.
type BatchRequest struct {
	Rows      []ImportRow         `json:"rows"`
	Countries []string            `json:"countries"`
	Flags     pricing.MarginFlags `json:"marginFlags"`
	Selection map[string][]int64  `json:"selection"`
}

// CalculatedRow is a validated row with its per-country prices.
type CalculatedRow struct {
	Row     ImportRow               `json:"row"`
	Product pricing.ProductSnapshot `json:"product"`
	Prices  []pricing.CountryPrice  `json:"countryDeliverables"`
}

// BatchResult is the outcome of a successful batch calculation.
type BatchResult struct {
	Rows []CalculatedRow `json:"rows"`
}

// Calculator validates and prices a batch. Row validation failures are
// reported as *RowErrors.
type Calculator interface {
	CalculateBatch(ctx context.Context, req BatchRequest) (BatchResult, error)
}

// Committer persists a calculated batch. Row validation failures are
// reported as *RowErrors.
type Committer interface {
	CommitBatch(ctx context.Context, filePath string, rows []CalculatedRow) error
}

// Deps are the collaborators a pipeline talks to.
type Deps struct {
	Catalog    CatalogReader
	Calculator Calculator
	Committer  Committer
	Log        *zap.Logger
}

// Pipeline holds the state of one import wizard run. It is safe for use from
// several goroutines; calculation and commit reject overlapping calls.
type Pipeline struct {
	ID string

	deps Deps

	mu         sync.Mutex
	stage      Stage
	filePath   string
	rows       []ImportRow
	countries  []string
	flags      pricing.MarginFlags
	selection  pricing.Selection
	catalog    pricing.Catalog
	eligible   pricing.Catalog
	calculated []CalculatedRow
	loading    bool
	notice     string
}

// NewPipeline returns a pipeline waiting for an upload.
func NewPipeline(id string, deps Deps) *Pipeline {
	if deps.Log == nil {
		deps.Log = logging.Named("importer")
	}
	return &Pipeline{
		ID:        id,
		deps:      deps,
		stage:     StageUpload,
		selection: pricing.NewSelection(),
	}
}

// View is a read-only copy of the pipeline state.
type View struct {
	ID         string                                `json:"id"`
	Stage      Stage                                 `json:"stage"`
	FilePath   string                                `json:"filePath,omitempty"`
	Rows       []ImportRow                           `json:"rows"`
	Countries  []string                              `json:"countries"`
	Flags      pricing.MarginFlags                   `json:"marginFlags"`
	Selection  map[string][]int64                    `json:"selection"`
	Eligible   map[string][]pricing.ChargeDefinition `json:"eligibleCharges,omitempty"`
	Calculated []CalculatedRow                       `json:"calculated,omitempty"`
	Loading    bool                                  `json:"loading"`
	Notice     string                                `json:"notice,omitempty"`
}

// Snapshot returns the current state.
func (p *Pipeline) Snapshot() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	rows := make([]ImportRow, len(p.rows))
	for i, row := range p.rows {
		rows[i] = row.clone()
	}
	var eligible map[string][]pricing.ChargeDefinition
	if p.eligible != nil {
		eligible = make(map[string][]pricing.ChargeDefinition, len(p.eligible))
		for country, charges := range p.eligible {
			eligible[country] = append([]pricing.ChargeDefinition(nil), charges...)
		}
	}
	return View{
		ID:         p.ID,
		Stage:      p.stage,
		FilePath:   p.filePath,
		Rows:       rows,
		Countries:  append([]string(nil), p.countries...),
		Flags:      p.flags,
		Selection:  p.selection.AsIDs(),
		Eligible:   eligible,
		Calculated: append([]CalculatedRow(nil), p.calculated...),
		Loading:    p.loading,
		Notice:     p.notice,
	}
}

// Stage returns the current stage.
func (p *Pipeline) Stage() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stage
}

func (p *Pipeline) checkIdle() error {
	if p.loading {
		return apperr.Conflict("a calculation or commit is already in progress")
	}
	if p.stage == StageCommitted || p.stage == StageCancelled {
		return apperr.Newf(apperr.TypeConflict, "import is %s", p.stage)
	}
	return nil
}

func (p *Pipeline) expect(stage Stage) error {
	if err := p.checkIdle(); err != nil {
		return err
	}
	if p.stage != stage {
		return apperr.Newf(apperr.TypeConflict, "operation requires stage %s, import is at %s", stage, p.stage)
	}
	return nil
}

// Upload validates and parses a spreadsheet and moves the wizard to preview.
// filePath is where the collaborator stored the upload; it is handed back on
// commit.
func (p *Pipeline) Upload(filePath string, r io.Reader) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.expect(StageUpload); err != nil {
		return err
	}
	if err := ValidateFileName(filePath); err != nil {
		return err
	}

	rows, err := ParseSpreadsheet(r)
	if err != nil {
		return err
	}

	p.filePath = filePath
	p.rows = rows
	p.countries = batchCountries(rows)
	p.stage = StagePreview
	p.notice = ""
	p.deps.Log.Info("spreadsheet parsed",
		zap.String("import", p.ID),
		zap.Int("rows", len(rows)),
		zap.Strings("countries", p.countries))
	return nil
}

// EditRow changes one field of a row during preview. The row's previous
// errors are cleared and it counts as valid until the batch is resubmitted.
func (p *Pipeline) EditRow(number int, field, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.expect(StagePreview); err != nil {
		return err
	}
	field = NormalizeColumn(field)
	if field == "" {
		return apperr.Input("field name is required")
	}

	for i := range p.rows {
		if p.rows[i].Number != number {
			continue
		}
		p.rows[i].Fields[field] = strings.TrimSpace(value)
		p.rows[i].Errors = []string{}
		p.rows[i].IsValid = true
		if field == ColCountries {
			p.countries = batchCountries(p.rows)
		}
		return nil
	}
	return apperr.NotFound("row", strconv.Itoa(number))
}

// SetMargins records the margin flags for the batch.
func (p *Pipeline) SetMargins(flags pricing.MarginFlags) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.expect(StageMargins); err != nil {
		return err
	}
	p.flags = flags
	return nil
}

// Eligible returns the charges that may be selected for country.
func (p *Pipeline) Eligible(country string) []pricing.ChargeDefinition {
	p.mu.Lock()
	defer p.mu.Unlock()
	country, _ = p.eligible.Resolve(country)
	return append([]pricing.ChargeDefinition(nil), p.eligible[country]...)
}

// Toggle flips one charge in the batch selection. Only eligible charges can
// be toggled, but joining a group selects every member the catalog lists.
func (p *Pipeline) Toggle(country string, chargeID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.expect(StageCosts); err != nil {
		return err
	}
	country, ok := p.eligible.Resolve(country)
	if !ok {
		return apperr.NotFound("country", country)
	}
	charge, ok := p.eligible.Find(country, chargeID)
	if !ok {
		return apperr.NotFound("eligible charge", strconv.FormatInt(chargeID, 10))
	}
	p.selection = pricing.Toggle(p.selection, country, charge, p.catalog[country])
	return nil
}

// Next advances the wizard one step. Leaving the costs step runs the batch
// calculation; when the calculator reports row errors they are written onto
// the rows and the wizard returns to preview with a *RowErrors error.
func (p *Pipeline) Next(ctx context.Context) error {
	p.mu.Lock()
	if err := p.checkIdle(); err != nil {
		p.mu.Unlock()
		return err
	}

	switch p.stage {
	case StageUpload:
		defer p.mu.Unlock()
		if len(p.rows) == 0 {
			return apperr.Input("upload a spreadsheet first")
		}
		p.stage = StagePreview
		return nil

	case StagePreview:
		defer p.mu.Unlock()
		if len(p.rows) == 0 {
			return apperr.Input("the batch has no rows")
		}
		invalid := 0
		for _, row := range p.rows {
			if !row.IsValid {
				invalid++
			}
		}
		if invalid > 0 {
			return apperr.Newf(apperr.TypeInput, "%d rows still have errors", invalid)
		}
		p.stage = StageMargins
		return nil

	case StageMargins:
		p.mu.Unlock()
		return p.enterCosts(ctx)

	case StageCosts:
		p.mu.Unlock()
		return p.calculate(ctx)

	default:
		defer p.mu.Unlock()
		return apperr.Newf(apperr.TypeConflict, "cannot advance from %s", p.stage)
	}
}

func (p *Pipeline) enterCosts(ctx context.Context) error {
	p.mu.Lock()
	catalog := p.catalog
	p.loading = catalog == nil
	p.mu.Unlock()

	if catalog == nil {
		var err error
		catalog, err = p.deps.Catalog.ChargesByCountry(ctx)

		p.mu.Lock()
		p.loading = false
		if err != nil {
			p.notice = "could not load the charge catalog: " + err.Error()
			p.mu.Unlock()
			return apperr.Wrap(apperr.TypeNetwork, "load charge catalog", err)
		}
		p.catalog = catalog
		p.mu.Unlock()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stage != StageMargins {
		return apperr.Newf(apperr.TypeConflict, "import moved to %s while loading charges", p.stage)
	}

	canonicalCountries(p.rows, catalog)
	p.countries = batchCountries(p.rows)

	products := make([]pricing.ProductSnapshot, 0, len(p.rows))
	for _, row := range p.rows {
		product, _ := RowProduct(row)
		products = append(products, product)
	}

	p.eligible = make(pricing.Catalog, len(p.countries))
	for _, country := range p.countries {
		p.eligible[country] = pricing.EligibleCharges(catalog[country], products, country)
	}
	p.selection = pruneSelection(p.selection, p.eligible, catalog)
	p.notice = ""
	p.stage = StageCosts
	return nil
}

// pruneSelection drops selected charges that are no longer eligible. A
// selected group member that is not eligible itself survives as long as an
// eligible member of its group stays selected.
func pruneSelection(sel pricing.Selection, eligible, catalog pricing.Catalog) pricing.Selection {
	out := pricing.NewSelection()
	keep := func(country string, id int64) {
		if out[country] == nil {
			out[country] = make(map[int64]struct{})
		}
		out[country][id] = struct{}{}
	}
	for country := range sel {
		groups := make(map[string]bool)
		for _, id := range sel.IDs(country) {
			if c, ok := eligible.Find(country, id); ok {
				keep(country, id)
				if c.GroupID != "" {
					groups[c.GroupID] = true
				}
			}
		}
		for _, id := range sel.IDs(country) {
			if c, ok := catalog.Find(country, id); ok && c.GroupID != "" && groups[c.GroupID] {
				keep(country, id)
			}
		}
	}
	return out
}

func (p *Pipeline) calculate(ctx context.Context) error {
	p.mu.Lock()
	if err := p.expect(StageCosts); err != nil {
		p.mu.Unlock()
		return err
	}
	req := BatchRequest{
		Rows:      make([]ImportRow, len(p.rows)),
		Countries: append([]string(nil), p.countries...),
		Flags:     p.flags,
		Selection: p.selection.AsIDs(),
	}
	for i, row := range p.rows {
		req.Rows[i] = row.clone()
	}
	p.loading = true
	p.mu.Unlock()

	result, err := p.deps.Calculator.CalculateBatch(ctx, req)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false
	if p.stage != StageCosts {
		return apperr.Newf(apperr.TypeConflict, "import moved to %s during calculation", p.stage)
	}

	if err != nil {
		return p.handleFailure("calculation", err)
	}

	p.calculated = result.Rows
	p.notice = ""
	p.stage = StageFinalPreview
	p.deps.Log.Info("batch calculated", zap.String("import", p.ID), zap.Int("rows", len(result.Rows)))
	return nil
}

// Commit submits the calculated batch.
func (p *Pipeline) Commit(ctx context.Context) error {
	p.mu.Lock()
	if err := p.expect(StageFinalPreview); err != nil {
		p.mu.Unlock()
		return err
	}
	rows := append([]CalculatedRow(nil), p.calculated...)
	filePath := p.filePath
	p.loading = true
	p.mu.Unlock()

	err := p.deps.Committer.CommitBatch(ctx, filePath, rows)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false
	if p.stage != StageFinalPreview {
		return apperr.Newf(apperr.TypeConflict, "import moved to %s during commit", p.stage)
	}

	if err != nil {
		return p.handleFailure("commit", err)
	}

	p.stage = StageCommitted
	p.notice = ""
	p.deps.Log.Info("batch committed", zap.String("import", p.ID), zap.Int("rows", len(rows)))
	return nil
}

// handleFailure must be called with p.mu held.
func (p *Pipeline) handleFailure(op string, err error) error {
	var rowErrs *RowErrors
	if errors.As(err, &rowErrs) {
		unmatched := ApplyRowErrors(p.rows, rowErrs.Errors)
		p.calculated = nil
		p.stage = StagePreview
		p.notice = strings.Join(unmatched, "; ")
		p.deps.Log.Info(op+" rejected rows",
			zap.String("import", p.ID),
			zap.Int("errors", len(rowErrs.Errors)),
			zap.Int("unmatched", len(unmatched)))
		return rowErrs
	}

	p.notice = op + " failed: " + err.Error()
	p.deps.Log.Warn(op+" failed", zap.String("import", p.ID), zap.Error(err))
	if apperr.IsType(err, apperr.TypeNetwork) {
		return err
	}
	return apperr.Wrap(apperr.TypeNetwork, op+" failed", err)
}

// Back steps the wizard back. Leaving preview discards the whole batch;
// every other step keeps rows, flags and selection.
func (p *Pipeline) Back() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkIdle(); err != nil {
		return err
	}

	switch p.stage {
	case StageUpload:
		return apperr.Conflict("already at the first step")
	case StagePreview:
		p.reset()
		p.stage = StageUpload
	case StageMargins:
		p.stage = StagePreview
	case StageCosts:
		p.stage = StageMargins
	case StageFinalPreview:
		p.calculated = nil
		p.stage = StageCosts
	}
	return nil
}

// Cancel abandons the import. Nothing is persisted before commit. An import
// cannot be cancelled while a calculation or commit is running.
func (p *Pipeline) Cancel() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loading {
		return apperr.Conflict("a calculation or commit is already in progress")
	}
	p.reset()
	p.stage = StageCancelled
	return nil
}

func (p *Pipeline) reset() {
	p.filePath = ""
	p.rows = nil
	p.countries = nil
	p.flags = pricing.MarginFlags{}
	p.selection = pricing.NewSelection()
	p.catalog = nil
	p.eligible = nil
	p.calculated = nil
	p.notice = ""
}
