package helper

import (
	"context"
	"maps"
	"sync"

	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore"
)

// SpySpanContext records what the EventStore sets on a span.
type SpySpanContext struct {
	mu         sync.Mutex
	status     string
	attributes map[string]string
}

func (c *SpySpanContext) SetStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = status
}

func (c *SpySpanContext) AddAttribute(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.attributes[key] = value
}

// SpySpanRecord is one started span, Finished tells whether FinishSpan was called for it.
type SpySpanRecord struct {
	Name            string
	StartAttributes map[string]string
	Status          string
	EndAttributes   map[string]string
	Finished        bool
	FinishCount     int
	span            *SpySpanContext
}

type spySpanKey struct{}

// SpySpanFromContext returns the span StartSpan put into ctx, or nil when ctx carries none.
func SpySpanFromContext(ctx context.Context) *SpySpanContext {
	if ctx == nil {
		return nil
	}

	span, _ := ctx.Value(spySpanKey{}).(*SpySpanContext)
	return span
}

// TracingCollectorSpy captures the spans the EventStore starts and finishes.
type TracingCollectorSpy struct {
	mu      sync.Mutex
	records []SpySpanRecord
}

var _ eventstore.TracingCollector = (*TracingCollectorSpy)(nil)

// NewTracingCollectorSpy creates an empty TracingCollectorSpy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{}
}

func (s *TracingCollectorSpy) StartSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, eventstore.SpanContext) {

	s.mu.Lock()
	defer s.mu.Unlock()

	span := &SpySpanContext{attributes: make(map[string]string)}
	s.records = append(s.records, SpySpanRecord{
		Name:            name,
		StartAttributes: maps.Clone(attrs),
		span:            span,
	})

	return context.WithValue(ctx, spySpanKey{}, span), span
}

func (s *TracingCollectorSpy) FinishSpan(spanCtx eventstore.SpanContext, status string, attrs map[string]string) {
	span, ok := spanCtx.(*SpySpanContext)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].span == span {
			s.records[i].Status = status
			s.records[i].EndAttributes = maps.Clone(attrs)
			s.records[i].Finished = true
			s.records[i].FinishCount++

			return
		}
	}
}

// GetSpanRecords returns a copy of the captured spans in start order.
func (s *TracingCollectorSpy) GetSpanRecords() []SpySpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]SpySpanRecord, len(s.records))
	copy(records, s.records)

	return records
}

// SpanRecordsNamed returns the captured spans with the given name in start order.
func (s *TracingCollectorSpy) SpanRecordsNamed(name string) []SpySpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []SpySpanRecord
	for _, record := range s.records {
		if record.Name == name {
			records = append(records, record)
		}
	}

	return records
}

func (s *TracingCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
}
