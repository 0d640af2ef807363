// Package recalc executes recalculation plans: it applies base-asset edits and recomputes
// every dependent index for a target date inside a single store transaction.
package recalc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ucsindex/engine/internal/audit"
	"github.com/ucsindex/engine/internal/cache"
	"github.com/ucsindex/engine/internal/dependency"
	"github.com/ucsindex/engine/internal/domain"
	"github.com/ucsindex/engine/internal/plan"
	"github.com/ucsindex/engine/internal/quote"
	"github.com/ucsindex/engine/internal/valuation"
)

const (
	sourceManual      = "manual"
	sourceCalculation = "recalculation"
)

// Syncer triggers the external recalculation pipeline after a successful commit.
type Syncer interface {
	Trigger(ctx context.Context, targetDate time.Time, edits map[string]decimal.Decimal) error
}

// Hook runs after every successful execution. Failures are logged and never change the result.
type Hook interface {
	AfterRecalculation(ctx context.Context, targetDate time.Time, result Result) error
}

// Option configures a Service.
type Option func(*Service)

// WithSyncer enables the external_sync step.
func WithSyncer(s Syncer) Option {
	return func(svc *Service) { svc.syncer = s }
}

// WithInvalidator sets where cache invalidations are sent.
func WithInvalidator(inv cache.Invalidator) Option {
	return func(svc *Service) { svc.invalidator = inv }
}

// WithHooks appends after-recalculation hooks.
func WithHooks(hooks ...Hook) Option {
	return func(svc *Service) { svc.hooks = append(svc.hooks, hooks...) }
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(svc *Service) { svc.tracer = t }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

// Service runs recalculations.
type Service struct {
	registry    *dependency.Registry
	catalog     valuation.Catalog
	quotes      quote.Repository
	audits      audit.Repository
	syncer      Syncer
	invalidator cache.Invalidator
	hooks       []Hook
	tracer      trace.Tracer
	now         func() time.Time
	generator   *plan.Generator
}

// NewService creates a recalculation service. The catalog must cover every derived asset
// of the registry.
func NewService(registry *dependency.Registry, catalog valuation.Catalog, quotes quote.Repository, audits audit.Repository, opts ...Option) (*Service, error) {
	if err := catalog.Check(registry); err != nil {
		return nil, err
	}

	s := &Service{
		registry:    registry,
		catalog:     catalog,
		quotes:      quotes,
		audits:      audits,
		invalidator: cache.Multi{},
		tracer:      otel.Tracer("github.com/ucsindex/engine/internal/recalc"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.generator = plan.NewGenerator(registry, s.syncer != nil)
	return s, nil
}

// Generator exposes the plan generator the service executes.
func (s *Service) Generator() *plan.Generator { return s.generator }

// Preview validates edited and returns the plan and its estimate without touching the store.
func (s *Service) Preview(edited []string, targetDate time.Time) (Preview, error) {
	if err := validateEdits(s.registry, edited); err != nil {
		return Preview{}, err
	}
	steps, err := s.generator.Generate(edited, targetDate)
	if err != nil {
		return Preview{}, err
	}
	dependents, err := s.generator.Dependents(edited)
	if err != nil {
		return Preview{}, err
	}
	return Preview{
		TargetDate:          domain.FormatISODate(targetDate),
		AffectedAssets:      dependents,
		EstimatedDurationMs: s.generator.EstimateDuration(edited).Milliseconds(),
		Steps:               steps,
	}, nil
}

// Execute applies req. On failure the returned Result has Success false and the error is
// one of the typed domain errors where applicable; no store writes persist.
func (s *Service) Execute(ctx context.Context, req Request, onProgress ProgressFunc) (Result, error) {
	start := s.now()
	targetDate := domain.NormalizeDate(req.TargetDate)
	edited := req.EditedIDs()

	ctx, span := s.tracer.Start(ctx, "recalc.Execute", trace.WithAttributes(
		attribute.String("recalc.target_date", domain.FormatISODate(targetDate)),
		attribute.StringSlice("recalc.edited", edited),
		attribute.String("recalc.user", req.User),
	))
	defer span.End()

	res := Result{
		ID:             uuid.New(),
		TargetDate:     domain.FormatISODate(targetDate),
		AffectedAssets: []string{},
	}
	finish := func(err error) (Result, error) {
		res.ExecutionTimeMs = s.now().Sub(start).Milliseconds()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			res.Success = false
			res.Message = err.Error()
			slog.Error("recalculation failed", "id", res.ID, "date", res.TargetDate, "user", req.User, "error", err)
			return res, err
		}
		return res, nil
	}

	validation := newTracker([]domain.RecalculationStep{{
		ID:        domain.ValidationStepID,
		Name:      "Validate edits",
		Kind:      domain.StepValidation,
		DependsOn: []string{},
		Status:    domain.StepPending,
	}}, s.generator, onProgress, s.now)
	validation.begin(domain.ValidationStepID)
	if err := validateEdits(s.registry, edited); err != nil {
		validation.failActive(err)
		res.Steps = validation.snapshot()
		return finish(err)
	}

	steps, err := s.generator.Generate(edited, targetDate)
	if err != nil {
		validation.failActive(err)
		res.Steps = validation.snapshot()
		return finish(err)
	}
	dependents, err := s.generator.Dependents(edited)
	if err != nil {
		validation.failActive(err)
		res.Steps = validation.snapshot()
		return finish(err)
	}
	res.AffectedAssets = dependents

	t := newTracker(steps, s.generator, onProgress, s.now)
	t.begin(domain.ValidationStepID)
	t.complete(domain.ValidationStepID)

	oldValues, err := s.applyInTx(ctx, t, targetDate, req, dependents)
	if err != nil {
		t.failActive(err)
		res.Steps = t.snapshot()
		return finish(err)
	}

	var warnings []string

	if s.syncer != nil {
		t.enter(StateSyncingExternal)
		res.ExternalSyncTriggered = s.runStep(ctx, t, domain.ExternalSyncStepID, func(ctx context.Context) error {
			return s.syncer.Trigger(ctx, targetDate, req.EditMap())
		})
		if !res.ExternalSyncTriggered {
			warnings = append(warnings, "external sync failed")
		}
	}

	if err := s.writeAudit(ctx, targetDate, req, oldValues, dependents); err != nil {
		slog.Error("writing audit log", "id", res.ID, "date", res.TargetDate, "error", err)
		warnings = append(warnings, "audit log write failed")
	}

	t.enter(StateUpdatingCache)
	if !s.runStep(ctx, t, domain.CacheInvalidationStepID, func(ctx context.Context) error {
		return s.invalidator.Invalidate(ctx, targetDate, lo.Union(edited, dependents))
	}) {
		warnings = append(warnings, "cache invalidation failed")
	}

	t.enter(StateDone)
	t.report()

	res.Success = true
	res.Steps = t.snapshot()
	res.Message = fmt.Sprintf("recalculated %d assets for %s after editing %d", len(dependents), res.TargetDate, len(edited))
	if len(warnings) > 0 {
		res.Message += " (" + strings.Join(warnings, "; ") + ")"
	}
	res, _ = finish(nil)

	slog.Info("recalculation completed",
		"id", res.ID,
		"date", res.TargetDate,
		"user", req.User,
		"edited", edited,
		"affected", len(dependents),
		"duration_ms", res.ExecutionTimeMs,
		"external_sync", res.ExternalSyncTriggered,
	)

	for _, h := range s.hooks {
		if err := h.AfterRecalculation(ctx, targetDate, res); err != nil {
			slog.Warn("after-recalculation hook failed", "id", res.ID, "error", err)
		}
	}
	return res, nil
}

// applyInTx writes every edit and dependent in one transaction and returns the values the
// edited assets had before the edit.
func (s *Service) applyInTx(ctx context.Context, t *tracker, date time.Time, req Request, dependents []string) (map[string]decimal.Decimal, error) {
	var oldValues map[string]decimal.Decimal

	err := s.quotes.InTx(ctx, func(ctx context.Context, tx quote.Tx) error {
		oldValues = make(map[string]decimal.Decimal, len(req.Edits))
		values := make(valuation.Inputs)

		t.enter(StateUpdatingBase)
		for _, e := range req.Edits {
			err := s.traceStep(ctx, t, domain.BaseUpdateStepID(e.AssetID), func(ctx context.Context) error {
				q, create, err := readOrSeed(ctx, tx, e.AssetID, date, s.now())
				if err != nil {
					return err
				}
				oldValues[e.AssetID] = q.Value

				q.SetValue(e.Value)
				q.Status = domain.QuoteStatusManualEdit
				q.Source = sourceManual
				q.Timestamp = s.now()
				if err := write(ctx, tx, q, create); err != nil {
					return err
				}
				values[e.AssetID] = e.Value
				return nil
			})
			if err != nil {
				return err
			}
		}

		t.enter(StateCalculatingDependents)
		for _, id := range dependents {
			err := s.traceStep(ctx, t, domain.IndexCalculationStepID(id), func(ctx context.Context) error {
				in, err := s.inputsFor(ctx, tx, id, date, values)
				if err != nil {
					return err
				}
				v, err := s.catalog.Evaluate(id, in)
				if err != nil {
					return fmt.Errorf("calculating %s: %w", id, err)
				}

				q, create, err := readOrSeed(ctx, tx, id, date, s.now())
				if err != nil {
					return err
				}
				q.SetValue(v.Value)
				q.Status = domain.QuoteStatusAutoCalculated
				q.Source = sourceCalculation
				q.Timestamp = s.now()
				q.Components = v.Components
				q.Conversions = v.Conversions
				if err := write(ctx, tx, q, create); err != nil {
					return err
				}
				values[id] = v.Value
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return oldValues, nil
}

// inputsFor collects the direct inputs of id. Values written earlier in the transaction win;
// anything else is the latest stored quote on or before date.
func (s *Service) inputsFor(ctx context.Context, tx quote.Tx, id string, date time.Time, values valuation.Inputs) (valuation.Inputs, error) {
	a, ok := s.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", dependency.ErrUnknownAsset, id)
	}

	in := make(valuation.Inputs, len(a.DependsOn))
	for _, dep := range a.DependsOn {
		if v, ok := values[dep]; ok {
			in[dep] = v
			continue
		}
		q, err := tx.LatestOnOrBefore(ctx, dep, date)
		if errors.Is(err, quote.ErrNotFound) {
			return nil, &domain.MissingInputError{AssetID: id, Input: dep}
		}
		if err != nil {
			return nil, fmt.Errorf("reading input %s of %s: %w", dep, id, err)
		}
		in[dep] = q.Value
		values[dep] = q.Value
	}
	return in, nil
}

func (s *Service) writeAudit(ctx context.Context, date time.Time, req Request, oldValues map[string]decimal.Decimal, dependents []string) error {
	now := s.now()
	entries := make([]domain.AuditLogEntry, 0, len(req.Edits))
	for _, e := range req.Edits {
		name := e.AssetID
		if a, ok := s.registry.Get(e.AssetID); ok {
			name = a.Name
		}
		entries = append(entries, domain.AuditLogEntry{
			ID:             uuid.New(),
			Timestamp:      now,
			Action:         domain.AuditEdit,
			AssetID:        e.AssetID,
			AssetName:      name,
			OldValue:       oldValues[e.AssetID],
			NewValue:       e.Value,
			User:           req.User,
			AffectedAssets: dependents,
			TargetDate:     date,
		})
	}
	return s.audits.InsertBatch(ctx, entries)
}

// traceStep runs fn as step id inside a child span and records the outcome on the tracker.
// Errors are returned unchanged.
func (s *Service) traceStep(ctx context.Context, t *tracker, id string, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "recalc.step", trace.WithAttributes(attribute.String("recalc.step", id)))
	defer span.End()

	t.begin(id)
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	t.complete(id)
	return nil
}

// runStep runs a post-commit step. Failures are logged and marked on the step only.
func (s *Service) runStep(ctx context.Context, t *tracker, id string, fn func(ctx context.Context) error) bool {
	if err := s.traceStep(ctx, t, id, fn); err != nil {
		slog.Warn("post-commit step failed", "step", id, "error", err)
		t.fail(id, err)
		return false
	}
	return true
}

func readOrSeed(ctx context.Context, tx quote.Tx, assetID string, date, now time.Time) (domain.Quote, bool, error) {
	q, err := tx.GetForUpdate(ctx, assetID, date)
	if errors.Is(err, quote.ErrNotFound) {
		return domain.NewSeedQuote(assetID, date, now), true, nil
	}
	if err != nil {
		return domain.Quote{}, false, fmt.Errorf("reading %s: %w", assetID, err)
	}
	return q, false, nil
}

func write(ctx context.Context, tx quote.Tx, q domain.Quote, create bool) error {
	if create {
		return tx.Create(ctx, q)
	}
	return tx.Update(ctx, q)
}

// validateEdits rejects empty, duplicate, unknown and non-base edits before anything is written.
func validateEdits(reg *dependency.Registry, edited []string) error {
	if len(edited) == 0 {
		return &domain.InvalidEditError{Reason: "no edits given"}
	}
	if dups := lo.FindDuplicates(edited); len(dups) > 0 {
		return &domain.InvalidEditError{AssetID: dups[0], Reason: "edited more than once"}
	}
	return reg.ValidateEditable(edited)
}
