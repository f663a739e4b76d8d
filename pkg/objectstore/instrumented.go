package objectstore

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/marmos91/blobsweep/internal/logger"
	"github.com/marmos91/blobsweep/internal/telemetry"
)

// Operation names reported to OperationMetrics.
const (
	OpListPage    = "list_page"
	OpDelete      = "delete"
	OpHealthCheck = "health_check"
)

// OperationMetrics observes object store calls. Implementations must be safe
// for concurrent use. Pass nil to disable.
type OperationMetrics interface {
	// ObserveOperation records one call. err is nil on success and
	// ErrObjectNotFound counts as success.
	ObserveOperation(storeType, operation string, duration time.Duration, err error)

	// ObserveListed records how many entries a list page returned.
	ObserveListed(storeType string, entries int)
}

// instrumented decorates a Store with tracing spans and operation metrics.
type instrumented struct {
	Store
	storeType string
	metrics   OperationMetrics
	attrs     []attribute.KeyValue
}

// Instrument wraps s so that every call emits a span and, when m is non-nil,
// operation metrics labelled with storeType. attrs are added to every span,
// typically the bucket or container name.
func Instrument(s Store, storeType string, m OperationMetrics, attrs ...attribute.KeyValue) Store {
	return &instrumented{Store: s, storeType: storeType, metrics: m, attrs: attrs}
}

func (i *instrumented) ListPage(ctx context.Context, prefix, token string, limit int) (Page, error) {
	ctx, span := telemetry.StartStoreSpan(ctx, telemetry.SpanListPage, i.storeType,
		append([]attribute.KeyValue{telemetry.Prefix(prefix)}, i.attrs...)...)
	defer span.End()

	start := time.Now()
	page, err := i.Store.ListPage(ctx, prefix, token, limit)
	i.observe(OpListPage, start, err)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return page, err
	}
	span.SetAttributes(telemetry.Listed(int64(len(page.Entries))))
	if i.metrics != nil {
		i.metrics.ObserveListed(i.storeType, len(page.Entries))
	}
	return page, nil
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := i.Store.Delete(ctx, key)
	if IsNotFound(err) {
		i.observe(OpDelete, start, nil)
		return err
	}
	i.observe(OpDelete, start, err)
	return err
}

func (i *instrumented) HealthCheck(ctx context.Context) error {
	start := time.Now()
	err := i.Store.HealthCheck(ctx)
	i.observe(OpHealthCheck, start, err)
	return err
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	if err != nil {
		logger.Debug("Object store call failed",
			logger.KeyStoreType, i.storeType,
			logger.KeyOperation, op,
			logger.KeyError, err)
	}
	if i.metrics != nil {
		i.metrics.ObserveOperation(i.storeType, op, time.Since(start), err)
	}
}
