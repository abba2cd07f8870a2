package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joescharf/plane/internal/models"
	"github.com/joescharf/plane/internal/store"
)

const storeScopeName = "github.com/joescharf/plane/store"

// InstrumentedStore wraps store.Store with OTel tracing and metrics.
// Every method gets a span and is counted in plane.store.* metrics.
// Use WrapStore to create one; it returns the original store unchanged when
// telemetry is disabled.
type InstrumentedStore struct {
	inner  store.Store
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

var _ store.Store = (*InstrumentedStore)(nil)

// WrapStore returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is.
func WrapStore(s store.Store) store.Store {
	if !Enabled() {
		return s
	}
	m := Meter(storeScopeName)
	ops, _ := m.Int64Counter("plane.store.operations",
		metric.WithDescription("Total store operations executed"),
	)
	dur, _ := m.Float64Histogram("plane.store.operation.duration",
		metric.WithDescription("Store operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("plane.store.errors",
		metric.WithDescription("Total store operation errors"),
	)
	return &InstrumentedStore{
		inner:  s,
		tracer: Tracer(storeScopeName),
		ops:    ops,
		dur:    dur,
		errs:   errs,
	}
}

// op starts a span and records a metric for the named store operation.
func (s *InstrumentedStore) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("db.operation", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "store."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (s *InstrumentedStore) done(ctx context.Context, span trace.Span, start time.Time, err error, name string) {
	attrs := metric.WithAttributes(attribute.String("db.operation", name))
	ms := float64(time.Since(start).Microseconds()) / 1000
	s.dur.Record(ctx, ms, attrs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, attrs)
	}
	span.End()
}

// ── Sequences ───────────────────────────────────────────────────────────────

func (s *InstrumentedStore) NextSequence(ctx context.Context, projectID string) (int, error) {
	ctx, span, t := s.op(ctx, "NextSequence", attribute.String("plane.project", projectID))
	v, err := s.inner.NextSequence(ctx, projectID)
	span.SetAttributes(attribute.Int("plane.sequence", v))
	s.done(ctx, span, t, err, "NextSequence")
	return v, err
}

// ── Issues ──────────────────────────────────────────────────────────────────

func (s *InstrumentedStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	ctx, span, t := s.op(ctx, "CreateIssue",
		attribute.String("plane.project", issue.ProjectID),
		attribute.String("plane.issue.type", string(issue.Type)),
	)
	err := s.inner.CreateIssue(ctx, issue)
	if err == nil {
		span.SetAttributes(attribute.String("plane.issue.id", issue.ID))
	}
	s.done(ctx, span, t, err, "CreateIssue")
	return err
}

func (s *InstrumentedStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	ctx, span, t := s.op(ctx, "GetIssue", attribute.String("plane.issue.id", id))
	v, err := s.inner.GetIssue(ctx, id)
	s.done(ctx, span, t, err, "GetIssue")
	return v, err
}

func (s *InstrumentedStore) ListIssues(ctx context.Context, projectID string, filter store.IssueFilter) ([]*models.Issue, error) {
	ctx, span, t := s.op(ctx, "ListIssues", attribute.String("plane.project", projectID))
	v, err := s.inner.ListIssues(ctx, projectID, filter)
	span.SetAttributes(attribute.Int("plane.result.count", len(v)))
	s.done(ctx, span, t, err, "ListIssues")
	return v, err
}

func (s *InstrumentedStore) UpdateIssue(ctx context.Context, id string, upd models.IssueUpdate, actor string) (bool, error) {
	ctx, span, t := s.op(ctx, "UpdateIssue",
		attribute.String("plane.issue.id", id),
		attribute.String("plane.actor", actor),
	)
	v, err := s.inner.UpdateIssue(ctx, id, upd, actor)
	span.SetAttributes(attribute.Bool("plane.changed", v))
	s.done(ctx, span, t, err, "UpdateIssue")
	return v, err
}

func (s *InstrumentedStore) BulkUpdateIssues(ctx context.Context, ids []string, upd models.IssueUpdate, actor string) (int, error) {
	ctx, span, t := s.op(ctx, "BulkUpdateIssues",
		attribute.Int("plane.issue.count", len(ids)),
		attribute.String("plane.actor", actor),
	)
	v, err := s.inner.BulkUpdateIssues(ctx, ids, upd, actor)
	span.SetAttributes(attribute.Int("plane.affected", v))
	s.done(ctx, span, t, err, "BulkUpdateIssues")
	return v, err
}

// ── Activity and comments ───────────────────────────────────────────────────

func (s *InstrumentedStore) ListActivity(ctx context.Context, issueID string) ([]*models.ActivityRecord, error) {
	ctx, span, t := s.op(ctx, "ListActivity", attribute.String("plane.issue.id", issueID))
	v, err := s.inner.ListActivity(ctx, issueID)
	s.done(ctx, span, t, err, "ListActivity")
	return v, err
}

func (s *InstrumentedStore) AddComment(ctx context.Context, issueID, user, body string) (int64, error) {
	ctx, span, t := s.op(ctx, "AddComment",
		attribute.String("plane.issue.id", issueID),
		attribute.String("plane.actor", user),
	)
	v, err := s.inner.AddComment(ctx, issueID, user, body)
	s.done(ctx, span, t, err, "AddComment")
	return v, err
}

func (s *InstrumentedStore) ListComments(ctx context.Context, issueID string) ([]*models.Comment, error) {
	ctx, span, t := s.op(ctx, "ListComments", attribute.String("plane.issue.id", issueID))
	v, err := s.inner.ListComments(ctx, issueID)
	s.done(ctx, span, t, err, "ListComments")
	return v, err
}

// ── Cycles ──────────────────────────────────────────────────────────────────

func (s *InstrumentedStore) CreateCycle(ctx context.Context, c *models.Cycle) error {
	ctx, span, t := s.op(ctx, "CreateCycle", attribute.String("plane.project", c.ProjectID))
	err := s.inner.CreateCycle(ctx, c)
	s.done(ctx, span, t, err, "CreateCycle")
	return err
}

func (s *InstrumentedStore) GetCycle(ctx context.Context, id string) (*models.Cycle, error) {
	ctx, span, t := s.op(ctx, "GetCycle", attribute.String("plane.cycle.id", id))
	v, err := s.inner.GetCycle(ctx, id)
	s.done(ctx, span, t, err, "GetCycle")
	return v, err
}

func (s *InstrumentedStore) ListCycles(ctx context.Context, projectID string) ([]*models.Cycle, error) {
	ctx, span, t := s.op(ctx, "ListCycles", attribute.String("plane.project", projectID))
	v, err := s.inner.ListCycles(ctx, projectID)
	s.done(ctx, span, t, err, "ListCycles")
	return v, err
}

func (s *InstrumentedStore) UpdateCycleStatus(ctx context.Context, id string, status models.CycleStatus) error {
	ctx, span, t := s.op(ctx, "UpdateCycleStatus",
		attribute.String("plane.cycle.id", id),
		attribute.String("plane.cycle.status", string(status)),
	)
	err := s.inner.UpdateCycleStatus(ctx, id, status)
	s.done(ctx, span, t, err, "UpdateCycleStatus")
	return err
}

func (s *InstrumentedStore) AddToCycle(ctx context.Context, issueID, cycleID string) (bool, error) {
	ctx, span, t := s.op(ctx, "AddToCycle",
		attribute.String("plane.issue.id", issueID),
		attribute.String("plane.cycle.id", cycleID),
	)
	v, err := s.inner.AddToCycle(ctx, issueID, cycleID)
	s.done(ctx, span, t, err, "AddToCycle")
	return v, err
}

// ── Modules ─────────────────────────────────────────────────────────────────

func (s *InstrumentedStore) CreateModule(ctx context.Context, m *models.Module) error {
	ctx, span, t := s.op(ctx, "CreateModule", attribute.String("plane.project", m.ProjectID))
	err := s.inner.CreateModule(ctx, m)
	s.done(ctx, span, t, err, "CreateModule")
	return err
}

func (s *InstrumentedStore) GetModule(ctx context.Context, id string) (*models.Module, error) {
	ctx, span, t := s.op(ctx, "GetModule", attribute.String("plane.module.id", id))
	v, err := s.inner.GetModule(ctx, id)
	s.done(ctx, span, t, err, "GetModule")
	return v, err
}

func (s *InstrumentedStore) ListModules(ctx context.Context, projectID string) ([]*models.Module, error) {
	ctx, span, t := s.op(ctx, "ListModules", attribute.String("plane.project", projectID))
	v, err := s.inner.ListModules(ctx, projectID)
	s.done(ctx, span, t, err, "ListModules")
	return v, err
}

func (s *InstrumentedStore) AddToModule(ctx context.Context, issueID, moduleID string) (bool, error) {
	ctx, span, t := s.op(ctx, "AddToModule",
		attribute.String("plane.issue.id", issueID),
		attribute.String("plane.module.id", moduleID),
	)
	v, err := s.inner.AddToModule(ctx, issueID, moduleID)
	s.done(ctx, span, t, err, "AddToModule")
	return v, err
}

// ── Analytics ───────────────────────────────────────────────────────────────

func (s *InstrumentedStore) CycleAnalytics(ctx context.Context, cycleID string) (*models.CycleAnalytics, error) {
	ctx, span, t := s.op(ctx, "CycleAnalytics", attribute.String("plane.cycle.id", cycleID))
	v, err := s.inner.CycleAnalytics(ctx, cycleID)
	s.done(ctx, span, t, err, "CycleAnalytics")
	return v, err
}

func (s *InstrumentedStore) ModuleProgress(ctx context.Context, moduleID string) (*models.ModuleProgress, error) {
	ctx, span, t := s.op(ctx, "ModuleProgress", attribute.String("plane.module.id", moduleID))
	v, err := s.inner.ModuleProgress(ctx, moduleID)
	s.done(ctx, span, t, err, "ModuleProgress")
	return v, err
}

func (s *InstrumentedStore) ProjectAnalytics(ctx context.Context, projectID string) (*models.ProjectAnalytics, error) {
	ctx, span, t := s.op(ctx, "ProjectAnalytics", attribute.String("plane.project", projectID))
	v, err := s.inner.ProjectAnalytics(ctx, projectID)
	s.done(ctx, span, t, err, "ProjectAnalytics")
	return v, err
}

// ── Lifecycle ───────────────────────────────────────────────────────────────

func (s *InstrumentedStore) CheckIntegrity(ctx context.Context) ([]string, error) {
	ctx, span, t := s.op(ctx, "CheckIntegrity")
	v, err := s.inner.CheckIntegrity(ctx)
	span.SetAttributes(attribute.Int("plane.problems", len(v)))
	s.done(ctx, span, t, err, "CheckIntegrity")
	return v, err
}

func (s *InstrumentedStore) Migrate(ctx context.Context) error {
	ctx, span, t := s.op(ctx, "Migrate")
	err := s.inner.Migrate(ctx)
	s.done(ctx, span, t, err, "Migrate")
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}

// Unwrap returns the underlying store.
func (s *InstrumentedStore) Unwrap() store.Store {
	return s.inner
}
