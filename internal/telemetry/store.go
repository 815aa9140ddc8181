package telemetry

import (
	"context"
	"iter"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/docstore"
)

const storeScopeName = "github.com/gurpal-04/Autonomous-Scrum-Master/docstore"

// InstrumentedStore wraps docstore.Store with OTel tracing and metrics.
// Every call gets a span and is counted in scrum.store.* metrics.
type InstrumentedStore struct {
	inner  docstore.Store
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

var _ docstore.Store = (*InstrumentedStore)(nil)

// WrapStore returns s decorated with instrumentation from p. When p is not
// enabled, s is returned as-is.
func WrapStore(s docstore.Store, p *Providers) docstore.Store {
	if !p.Enabled() {
		return s
	}
	return newInstrumentedStore(s, p.TracerProvider, p.MeterProvider)
}

func newInstrumentedStore(s docstore.Store, tp trace.TracerProvider, mp metric.MeterProvider) *InstrumentedStore {
	m := mp.Meter(storeScopeName)
	ops, _ := m.Int64Counter("scrum.store.operations",
		metric.WithDescription("Total document store operations executed"),
	)
	dur, _ := m.Float64Histogram("scrum.store.operation.duration",
		metric.WithDescription("Document store operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("scrum.store.errors",
		metric.WithDescription("Total document store operation errors"),
	)
	return &InstrumentedStore{
		inner:  s,
		tracer: tp.Tracer(storeScopeName),
		ops:    ops,
		dur:    dur,
		errs:   errs,
	}
}

// op starts a span and counts the named store operation.
func (s *InstrumentedStore) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("db.operation", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "docstore."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (s *InstrumentedStore) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Microseconds()) / 1000
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func collAttr(collection string) attribute.KeyValue {
	return attribute.String("db.collection.name", collection)
}

func (s *InstrumentedStore) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	attrs := []attribute.KeyValue{collAttr(collection)}
	ctx, span, t := s.op(ctx, "Get", attrs...)
	v, err := s.inner.Get(ctx, collection, id)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) GetMany(ctx context.Context, collection string, ids []string) ([]*docstore.Document, error) {
	attrs := []attribute.KeyValue{collAttr(collection), attribute.Int("scrum.doc.count", len(ids))}
	ctx, span, t := s.op(ctx, "GetMany", attrs...)
	v, err := s.inner.GetMany(ctx, collection, ids)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	attrs := []attribute.KeyValue{collAttr(collection)}
	ctx, span, t := s.op(ctx, "Set", attrs...)
	err := s.inner.Set(ctx, collection, id, fields)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	attrs := []attribute.KeyValue{collAttr(collection)}
	ctx, span, t := s.op(ctx, "Update", attrs...)
	err := s.inner.Update(ctx, collection, id, fields)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) Delete(ctx context.Context, collection, id string) error {
	attrs := []attribute.KeyValue{collAttr(collection)}
	ctx, span, t := s.op(ctx, "Delete", attrs...)
	err := s.inner.Delete(ctx, collection, id)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) List(ctx context.Context, collection string, opts ...docstore.ListOption) ([]docstore.Document, error) {
	attrs := []attribute.KeyValue{collAttr(collection)}
	ctx, span, t := s.op(ctx, "List", attrs...)
	v, err := s.inner.List(ctx, collection, opts...)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

// Stream holds its span open until the caller stops iterating.
func (s *InstrumentedStore) Stream(ctx context.Context, collection string) iter.Seq2[docstore.Document, error] {
	return func(yield func(docstore.Document, error) bool) {
		attrs := []attribute.KeyValue{collAttr(collection)}
		ctx, span, t := s.op(ctx, "Stream", attrs...)
		var err error
		for doc, e := range s.inner.Stream(ctx, collection) {
			if e != nil {
				err = e
			}
			if !yield(doc, e) {
				break
			}
		}
		s.done(ctx, span, t, err, attrs...)
	}
}

func (s *InstrumentedStore) Where(ctx context.Context, collection, field string, op docstore.Op, value any) ([]docstore.Document, error) {
	attrs := []attribute.KeyValue{
		collAttr(collection),
		attribute.String("scrum.where.field", field),
		attribute.String("scrum.where.op", string(op)),
	}
	ctx, span, t := s.op(ctx, "Where", attrs...)
	v, err := s.inner.Where(ctx, collection, field, op, value)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) NewID(collection string) string {
	return s.inner.NewID(collection)
}

func (s *InstrumentedStore) Batch() docstore.Batch {
	return &instrumentedBatch{inner: s.inner.Batch(), store: s}
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}

// instrumentedBatch traces Commit; staging calls are not recorded.
type instrumentedBatch struct {
	inner docstore.Batch
	store *InstrumentedStore
}

func (b *instrumentedBatch) Set(collection, id string, fields map[string]any) docstore.Batch {
	b.inner.Set(collection, id, fields)
	return b
}

func (b *instrumentedBatch) Update(collection, id string, fields map[string]any) docstore.Batch {
	b.inner.Update(collection, id, fields)
	return b
}

func (b *instrumentedBatch) Delete(collection, id string) docstore.Batch {
	b.inner.Delete(collection, id)
	return b
}

func (b *instrumentedBatch) Len() int {
	return b.inner.Len()
}

func (b *instrumentedBatch) Commit(ctx context.Context) error {
	attrs := []attribute.KeyValue{attribute.Int("scrum.batch.writes", b.inner.Len())}
	ctx, span, t := b.store.op(ctx, "Commit", attrs...)
	err := b.inner.Commit(ctx)
	b.store.done(ctx, span, t, err, attrs...)
	return err
}
