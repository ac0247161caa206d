// Package reconcile turns operator-entered delivery addresses into
// geocoded, validated results. Each row runs through three decision tables:
// short circuits that need no provider call, geocoding evidence with
// cross-validation against the operator's coordinate, and the final status.
package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/route-geocoder/internal/address"
	"github.com/sells-group/route-geocoder/internal/model"
	"github.com/sells-group/route-geocoder/internal/scorer"
	"github.com/sells-group/route-geocoder/pkg/geocode"
)

// Geocoder is the provider cascade the engine consults. A nil or empty
// answer means no provider produced a result.
type Geocoder interface {
	Forward(ctx context.Context, query string) []geocode.Candidate
	Reverse(ctx context.Context, lat, lon float64) *geocode.Candidate
}

// LearnedSource returns a coordinate an operator previously confirmed for a
// learning key.
type LearnedSource interface {
	Lookup(ctx context.Context, key string) (address.Coordinate, bool, error)
}

// Option configures the Engine.
type Option func(*Engine)

// WithConcurrency sets how many rows are reconciled in parallel. Values
// below 2 keep the batch sequential.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		e.concurrency = n
	}
}

// WithLearnedSource enables the learned-coordinate lookup for rows that are
// not already flagged as learned.
func WithLearnedSource(src LearnedSource) Option {
	return func(e *Engine) {
		e.learned = src
	}
}

// WithThresholds overrides the policy limits. Zero fields keep their defaults.
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) {
		e.thresholds = t.withDefaults()
	}
}

// WithSelector replaces the best-match selector.
func WithSelector(s scorer.Selector) Option {
	return func(e *Engine) {
		e.selector = s
		e.customSelector = true
	}
}

// WithProgress registers fn to be called once per completed row. With
// concurrency above 1 it is called from several goroutines.
func WithProgress(fn func()) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// Engine reconciles batches of address rows.
type Engine struct {
	geocoder       Geocoder
	learned        LearnedSource
	thresholds     Thresholds
	selector       scorer.Selector
	customSelector bool
	concurrency    int
	progress       func()
}

// NewEngine creates an Engine over the given geocoder.
func NewEngine(g Geocoder, opts ...Option) *Engine {
	e := &Engine{
		geocoder:    g,
		thresholds:  DefaultThresholds(),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if !e.customSelector {
		e.selector = scorer.NewSelector(e.thresholds.MinScore)
	}
	return e
}

// Thresholds returns the policy limits in use.
func (e *Engine) Thresholds() Thresholds { return e.thresholds }

func (e *Engine) score(c geocode.Components, exp scorer.Expected) float64 {
	if e.selector.Score != nil {
		return e.selector.Score(c, exp)
	}
	return scorer.Confidence(c, exp)
}

// Reverse returns the address at a coordinate, or nil when no provider knows one.
func (e *Engine) Reverse(ctx context.Context, lat, lon float64) *geocode.Candidate {
	return e.geocoder.Reverse(ctx, lat, lon)
}

// Run reconciles inputs and returns exactly one result per input, in input
// order. Rows never fail individually. When ctx is canceled Run returns the
// contiguous prefix of completed rows together with ctx.Err().
func (e *Engine) Run(ctx context.Context, inputs []model.AddressInput) ([]model.AddressResult, error) {
	var (
		results []model.AddressResult
		err     error
	)
	if e.concurrency > 1 {
		results, err = e.runParallel(ctx, inputs)
	} else {
		results, err = e.runSequential(ctx, inputs)
	}

	logSummary(results, len(inputs), err)
	return results, err
}

func (e *Engine) runSequential(ctx context.Context, inputs []model.AddressInput) ([]model.AddressResult, error) {
	results := make([]model.AddressResult, 0, len(inputs))
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		r := e.reconcileRow(ctx, in)
		// A row interrupted mid-flight may have lost provider answers.
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, r)
		e.rowDone()
	}
	return results, nil
}

func (e *Engine) runParallel(ctx context.Context, inputs []model.AddressInput) ([]model.AddressResult, error) {
	results := make([]model.AddressResult, len(inputs))
	done := make([]bool, len(inputs))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, in := range inputs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			r := e.reconcileRow(ctx, in)
			if ctx.Err() != nil {
				return nil
			}
			results[i] = r
			done[i] = true
			e.rowDone()
			return nil
		})
	}
	_ = g.Wait()

	for i := range done {
		if !done[i] {
			return results[:i], ctx.Err()
		}
	}
	return results, nil
}

func (e *Engine) rowDone() {
	if e.progress != nil {
		e.progress()
	}
}

// reconcileRow runs one row through the policy. A panic is contained to the
// row and reported as pending.
func (e *Engine) reconcileRow(ctx context.Context, in model.AddressInput) (res model.AddressResult) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("reconcile: row panicked",
				zap.String("address", in.RawAddress),
				zap.String("panic", fmt.Sprint(rec)),
			)
			res = pendingRow(in, NoteInternalError)
		}
	}()

	s := newRowState(in)
	e.applyLearned(ctx, s)

	for _, sc := range shortCircuits {
		if sc.when(s) {
			res = sc.emit(s)
			logDecision(sc.name, res)
			return res
		}
	}

	if s.raw != "" {
		e.gatherEvidence(ctx, s)
	}
	res = e.decide(s)
	logDecision("policy", res)
	return res
}

// InvalidInput is the result for a row that could not be read. The row is
// left for manual review under the text it was submitted with.
func InvalidInput(raw string) model.AddressResult {
	return pendingRow(model.AddressInput{RawAddress: raw}, NoteInvalidInput)
}

func pendingRow(in model.AddressInput, note string) model.AddressResult {
	var notes model.Notes
	notes.Append(note)
	return model.AddressResult{
		OriginalAddress:  in.RawAddress,
		CorrectedAddress: in.RawAddress,
		Status:           model.StatusPending,
		Note:             notes.String(),
		Learned:          in.Learned,
		Bairro:           in.Bairro,
		Cidade:           in.Cidade,
		Estado:           in.Estado,
	}
}

func (e *Engine) applyLearned(ctx context.Context, s *rowState) {
	if e.learned == nil || s.learned || s.raw == "" {
		return
	}
	key := address.LearningKey(s.in)
	coord, ok, err := e.learned.Lookup(ctx, key)
	if err != nil {
		zap.L().Warn("reconcile: learned lookup failed", zap.String("key", key), zap.Error(err))
		return
	}
	if !ok || !coord.Valid() {
		return
	}
	s.learned = true
	s.operator = coord
	s.hasOperator = true
}

func logDecision(rule string, r model.AddressResult) {
	zap.L().Debug("reconcile: row decided",
		zap.String("rule", rule),
		zap.String("address", r.OriginalAddress),
		zap.String("status", string(r.Status)),
		zap.String("note", r.Note),
	)
}

func logSummary(results []model.AddressResult, total int, err error) {
	counts := make(map[model.Status]int, 3)
	for _, r := range results {
		counts[r.Status]++
	}
	fields := []zap.Field{
		zap.Int("total", total),
		zap.Int("completed", len(results)),
		zap.Int("valid", counts[model.StatusValid]),
		zap.Int("pending", counts[model.StatusPending]),
		zap.Int("atualizado", counts[model.StatusUpdated]),
	}
	if err != nil {
		zap.L().Warn("reconcile: batch interrupted", append(fields, zap.Error(err))...)
		return
	}
	zap.L().Info("reconcile: batch complete", fields...)
}

// Summary counts results per status, for CLI and API reporting.
func Summary(results []model.AddressResult) string {
	counts := make(map[model.Status]int, 3)
	for _, r := range results {
		counts[r.Status]++
	}
	return fmt.Sprintf("%d rows: %d valid, %d pending, %d atualizado",
		len(results), counts[model.StatusValid], counts[model.StatusPending], counts[model.StatusUpdated])
}
