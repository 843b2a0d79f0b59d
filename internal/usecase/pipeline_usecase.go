package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainbooks/chainbooks/internal/domain"
)

// RunConfig fixes the accounting policy for one run. The cost-basis
// method never changes within a computation.
type RunConfig struct {
	Method       domain.Method
	Frequency    domain.Frequency
	LongTermDays int
	Workers      int
}

// RunInput is one pipeline invocation. Method and Frequency override
// the configured defaults when set.
type RunInput struct {
	Wallet    string
	Records   []domain.RawRecord
	Resume    bool
	Method    domain.Method
	Frequency domain.Frequency
}

// Pipeline runs the full deterministic batch: normalize, classify,
// post, match lots, generate statements, checkpoint. A run either
// completes or fails atomically; no partial ledger state leaks into
// the statements.
type Pipeline struct {
	normalizer  *Normalizer
	classifier  *Classifier
	generator   *StatementGenerator
	oracle      PriceOracle
	checkpoints CheckpointRepository
	txManager   TransactionManager
	idGen       IDGenerator
	metrics     RunMetrics
	cfg         RunConfig
}

// NewPipeline creates a Pipeline. checkpoints and txManager may be nil
// to run without persistence.
func NewPipeline(
	normalizer *Normalizer,
	classifier *Classifier,
	generator *StatementGenerator,
	oracle PriceOracle,
	checkpoints CheckpointRepository,
	txManager TransactionManager,
	idGen IDGenerator,
	cfg RunConfig,
) *Pipeline {
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}

	if cfg.LongTermDays <= 0 {
		cfg.LongTermDays = DefaultLongTermDays
	}

	if cfg.Method == "" {
		cfg.Method = domain.FIFO
	}

	if cfg.Frequency == "" {
		cfg.Frequency = domain.Monthly
	}

	return &Pipeline{
		normalizer:  normalizer,
		classifier:  classifier,
		generator:   generator,
		oracle:      oracle,
		checkpoints: checkpoints,
		txManager:   txManager,
		idGen:       idGen,
		metrics:     nopRunMetrics{},
		cfg:         cfg,
	}
}

// WithMetrics attaches a RunMetrics sink and returns the pipeline.
func (p *Pipeline) WithMetrics(m RunMetrics) *Pipeline {
	if m != nil {
		p.metrics = m
	}
	return p
}

type nopRunMetrics struct{}

func (nopRunMetrics) EventsNormalized(int) {}
func (nopRunMetrics) EventUnclassifiable() {}
func (nopRunMetrics) EventUnpriced()       {}
func (nopRunMetrics) AssetAborted(string)  {}
func (nopRunMetrics) EntriesPosted(int)    {}
func (nopRunMetrics) DisposalsMatched(int) {}
func (nopRunMetrics) LotsOpened(int)       {}

type assetResult struct {
	asset     string
	entries   []domain.Entry
	accounts  []domain.Account
	disposals []domain.Disposal
	created   []domain.Lot
	open      []domain.Lot
	err       error
}

// Run executes the pipeline for one wallet.
func (p *Pipeline) Run(ctx context.Context, in RunInput) (*domain.Report, error) {
	cfg := p.cfg
	if in.Method != "" {
		cfg.Method = in.Method
	}
	if in.Frequency != "" {
		cfg.Frequency = in.Frequency
	}

	trail := &domain.AuditTrail{}

	events, err := p.normalizer.Normalize(ctx, in.Wallet, in.Records, trail)
	if err != nil {
		return nil, err
	}

	p.metrics.EventsNormalized(len(events))
	for _, ev := range events {
		if !ev.Priced {
			p.metrics.EventUnpriced()
		}
	}

	cp, err := p.loadCheckpoint(ctx, in)
	if err != nil {
		return nil, err
	}

	if cp != nil && len(events) > 0 && !cp.LastOrdinal.Before(events[0].Ordinal) {
		return nil, fmt.Errorf("%w: checkpoint at %s, first event at %s",
			domain.ErrCheckpointGap, cp.LastOrdinal, events[0].Ordinal)
	}

	perAsset, assetOrder := p.classifyAll(events, trail)

	results := p.processAssets(perAsset, assetOrder, cp, cfg)

	report := &domain.Report{
		Wallet:      in.Wallet,
		RunID:       p.idGen.Generate(),
		Method:      cfg.Method,
		GeneratedAt: time.Now().UTC(),
		AssetErrors: make(map[string]string),
	}

	var (
		entries   []domain.Entry
		accounts  []domain.Account
		disposals []domain.Disposal
		created   []domain.Lot
		openLots  = make(map[string][]domain.Lot)
	)

	for _, asset := range assetOrder {
		res := results[asset]

		if res.err != nil {
			// The affected asset aborts; the rest of the wallet
			// continues.
			report.AssetErrors[asset] = res.err.Error()
			p.metrics.AssetAborted(asset)
			trail.Add(domain.AuditNote{
				Code:    domain.AuditAssetAborted,
				Asset:   asset,
				Message: res.err.Error(),
				At:      time.Now().UTC(),
			})

			continue
		}

		entries = append(entries, res.entries...)
		accounts = append(accounts, res.accounts...)
		disposals = append(disposals, res.disposals...)
		created = append(created, res.created...)

		if len(res.open) > 0 {
			openLots[asset] = res.open
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if c := entries[i].Ordinal.Compare(entries[j].Ordinal); c != 0 {
			return c < 0
		}
		return entries[i].ID < entries[j].ID
	})

	sort.Slice(disposals, func(i, j int) bool {
		if c := disposals[i].Ordinal.Compare(disposals[j].Ordinal); c != 0 {
			return c < 0
		}
		return disposals[i].EventID < disposals[j].EventID
	})

	sort.Slice(created, func(i, j int) bool {
		if c := created[i].AcquiredOrdinal.Compare(created[j].AcquiredOrdinal); c != 0 {
			return c < 0
		}
		return created[i].ID < created[j].ID
	})

	p.metrics.EntriesPosted(len(entries))
	p.metrics.DisposalsMatched(len(disposals))
	p.metrics.LotsOpened(len(created))

	periods := p.periodsOf(events, cfg.Frequency)
	endPrices := p.fetchEndPrices(ctx, periods, created, trail)

	report.Periods = p.generator.Generate(GenerateInput{
		Entries:     entries,
		Disposals:   disposals,
		CreatedLots: created,
		Periods:     periods,
		EndPrices:   endPrices,
	})

	report.Ledger = p.generator.LedgerExport(entries)
	report.TaxLines = p.generator.TaxLines(disposals)
	report.Positions = p.finalPositions(periods, openLots, endPrices, cfg)
	report.AuditNotes = trail.Notes()

	for _, st := range report.Periods {
		if st.Provisional {
			report.Provisional = true
		}
	}
	if trail.HasCode(domain.AuditUnpriced) {
		report.Provisional = true
	}

	if len(report.AssetErrors) == 0 {
		report.AssetErrors = nil
	}

	// A checkpoint only advances on a fully clean run. Saving after a
	// per-asset abort would move LastOrdinal past the aborted asset's
	// events and the gap check would reject them on resume forever.
	if len(report.AssetErrors) == 0 {
		if err := p.saveCheckpoint(ctx, in.Wallet, report.RunID, events, accounts, openLots); err != nil {
			return nil, err
		}
	}

	return report, nil
}

func (p *Pipeline) loadCheckpoint(ctx context.Context, in RunInput) (*domain.Checkpoint, error) {
	if !in.Resume || p.checkpoints == nil {
		return nil, nil
	}

	cp, err := p.checkpoints.Get(ctx, in.Wallet)
	if errors.Is(err, domain.ErrCheckpointNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return cp, nil
}

// classifyAll classifies events in order and partitions them by asset.
// Unclassifiable events are excluded with an audit warning, never
// silently dropped. Gas-fee splits land in the gas asset's partition.
func (p *Pipeline) classifyAll(
	events []domain.TransactionEvent,
	trail *domain.AuditTrail,
) (map[string][]domain.ClassifiedEvent, []string) {
	perAsset := make(map[string][]domain.ClassifiedEvent)

	var order []string
	for _, ev := range events {
		classified, err := p.classifier.Classify(ev)
		if err != nil {
			p.metrics.EventUnclassifiable()
			trail.Add(domain.AuditNote{
				Code:    domain.AuditUnclassifiable,
				EventID: ev.ID,
				Asset:   ev.Asset,
				Message: err.Error(),
				At:      ev.Timestamp,
			})

			continue
		}

		for _, ce := range classified {
			if _, ok := perAsset[ce.Asset]; !ok {
				order = append(order, ce.Asset)
			}

			perAsset[ce.Asset] = append(perAsset[ce.Asset], ce)
		}
	}

	return perAsset, order
}

// processAssets runs the ledger engine and lot tracker per asset with
// a bounded worker pool. Each asset's mutable state is touched by
// exactly one worker, so no locking is needed beyond result
// collection.
func (p *Pipeline) processAssets(
	perAsset map[string][]domain.ClassifiedEvent,
	assetOrder []string,
	cp *domain.Checkpoint,
	cfg RunConfig,
) map[string]*assetResult {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]*assetResult, len(assetOrder))
		sem     = make(chan struct{}, cfg.Workers)
	)

	for _, asset := range assetOrder {
		wg.Add(1)

		go func(asset string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			res := p.processAsset(asset, perAsset[asset], cp, cfg)

			mu.Lock()
			results[asset] = res
			mu.Unlock()
		}(asset)
	}

	wg.Wait()

	return results
}

func (p *Pipeline) processAsset(asset string, events []domain.ClassifiedEvent, cp *domain.Checkpoint, cfg RunConfig) *assetResult {
	engine := NewLedgerEngine()
	tracker := NewLotTracker(cfg.Method, cfg.LongTermDays)

	if cp != nil {
		var balances []domain.Account
		for _, acc := range cp.Balances {
			if acc.Key.Asset == asset {
				balances = append(balances, acc)
			}
		}

		engine = NewLedgerEngineFrom(balances, cp.LastOrdinal)
		tracker = NewLotTrackerFrom(cfg.Method, cfg.LongTermDays, map[string][]domain.Lot{
			asset: cp.OpenLots[asset],
		})
	}

	res := &assetResult{asset: asset}

	for _, ev := range events {
		if _, err := engine.Post(ev); err != nil {
			res.err = err
			return res
		}

		disposal, err := tracker.Track(ev)
		if err != nil {
			res.err = err
			return res
		}

		if disposal != nil {
			if _, err := engine.PostRealizedGain(disposal); err != nil {
				res.err = err
				return res
			}
		}
	}

	res.entries = engine.Entries()
	res.accounts = engine.Accounts()
	res.disposals = tracker.Disposals()
	res.created = tracker.CreatedLots()
	res.open = tracker.OpenLots()[asset]

	return res
}

func (p *Pipeline) periodsOf(events []domain.TransactionEvent, freq domain.Frequency) []domain.Period {
	if len(events) == 0 {
		return nil
	}

	start := events[0].Timestamp
	end := events[len(events)-1].Timestamp.Add(time.Second)

	return domain.SplitPeriods(start, end, freq)
}

// fetchEndPrices resolves period-end prices for every asset that ever
// held a lot. Missing prices mark figures provisional downstream.
func (p *Pipeline) fetchEndPrices(
	ctx context.Context,
	periods []domain.Period,
	created []domain.Lot,
	trail *domain.AuditTrail,
) map[PricePoint]decimal.Decimal {
	assets := make(map[string]struct{})

	var order []string
	for _, lot := range created {
		if _, ok := assets[lot.Asset]; !ok {
			assets[lot.Asset] = struct{}{}
			order = append(order, lot.Asset)
		}
	}
	sort.Strings(order)

	prices := make(map[PricePoint]decimal.Decimal)
	for _, period := range periods {
		for _, asset := range order {
			price, priced, err := p.oracle.GetUnitPrice(ctx, asset, period.End)
			if err != nil || !priced {
				trail.Add(domain.AuditNote{
					Code:    domain.AuditUnpriced,
					Asset:   asset,
					Message: fmt.Sprintf("no period-end price at %s", period.End.Format(time.RFC3339)),
					At:      period.End,
				})

				continue
			}

			prices[PricePoint{Asset: asset, At: period.End}] = price
		}
	}

	return prices
}

func (p *Pipeline) finalPositions(
	periods []domain.Period,
	openLots map[string][]domain.Lot,
	endPrices map[PricePoint]decimal.Decimal,
	cfg RunConfig,
) []domain.Position {
	if len(openLots) == 0 {
		return nil
	}

	final := NewLotTrackerFrom(cfg.Method, cfg.LongTermDays, openLots)

	last := make(map[string]decimal.Decimal)
	if len(periods) > 0 {
		end := periods[len(periods)-1].End
		for point, price := range endPrices {
			if point.At.Equal(end) {
				last[point.Asset] = price
			}
		}
	}

	return final.Positions(last)
}

func (p *Pipeline) saveCheckpoint(
	ctx context.Context,
	wallet, runID string,
	events []domain.TransactionEvent,
	accounts []domain.Account,
	openLots map[string][]domain.Lot,
) error {
	if p.checkpoints == nil || p.txManager == nil || len(events) == 0 {
		return nil
	}

	cp := &domain.Checkpoint{
		Wallet:      wallet,
		RunID:       runID,
		LastOrdinal: events[len(events)-1].Ordinal,
		OpenLots:    openLots,
		Balances:    accounts,
		UpdatedAt:   time.Now().UTC(),
	}

	tx, err := p.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := p.checkpoints.Save(ctx, tx, cp); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
