package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys attached to collector spans.
const (
	AttrPassID      = "gc.pass_id"
	AttrTrigger     = "gc.trigger"
	AttrDryRun      = "gc.dry_run"
	AttrScope       = "gc.scope"
	AttrPrefix      = "gc.prefix"
	AttrLiveKeys    = "gc.live_keys"
	AttrListed      = "gc.listed"
	AttrOrphans     = "gc.orphans"
	AttrDeleted     = "gc.deleted"
	AttrFailed      = "gc.failed"
	AttrBytes       = "gc.bytes_reclaimed"
	AttrObjectKey   = "storage.key"
	AttrStoreType   = "store.type"
	AttrBucket      = "storage.bucket"
	AttrContainer   = "storage.container"
	AttrRegion      = "storage.region"
	AttrHTTPRoute   = "http.route"
	AttrHTTPMethod  = "http.method"
	AttrHTTPStatus  = "http.status_code"
	AttrPassOutcome = "gc.outcome"
)

// Span names.
const (
	SpanPass        = "gc.pass"
	SpanScope       = "gc.scope"
	SpanLiveKeys    = "gc.live_keys"
	SpanDelete      = "gc.delete"
	SpanForget      = "gc.forget"
	SpanListPage    = "objectstore.list_page"
	SpanAPIRequest  = "api.request"
)

// PassID returns an attribute carrying the pass identifier.
func PassID(id string) attribute.KeyValue {
	return attribute.String(AttrPassID, id)
}

// Trigger returns an attribute naming what started a pass.
func Trigger(trigger string) attribute.KeyValue {
	return attribute.String(AttrTrigger, trigger)
}

func DryRun(dry bool) attribute.KeyValue {
	return attribute.Bool(AttrDryRun, dry)
}

// Scope returns an attribute for the scope (tenant) being reconciled.
func Scope(scope string) attribute.KeyValue {
	return attribute.String(AttrScope, scope)
}

func Prefix(prefix string) attribute.KeyValue {
	return attribute.String(AttrPrefix, prefix)
}

func LiveKeys(n int) attribute.KeyValue {
	return attribute.Int(AttrLiveKeys, n)
}

func Listed(n int64) attribute.KeyValue {
	return attribute.Int64(AttrListed, n)
}

func Orphans(n int64) attribute.KeyValue {
	return attribute.Int64(AttrOrphans, n)
}

func Deleted(n int64) attribute.KeyValue {
	return attribute.Int64(AttrDeleted, n)
}

func Failed(n int64) attribute.KeyValue {
	return attribute.Int64(AttrFailed, n)
}

func BytesReclaimed(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytes, n)
}

// ObjectKey returns an attribute for a single object key.
func ObjectKey(key string) attribute.KeyValue {
	return attribute.String(AttrObjectKey, key)
}

func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

func Container(name string) attribute.KeyValue {
	return attribute.String(AttrContainer, name)
}

func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

func Outcome(outcome string) attribute.KeyValue {
	return attribute.String(AttrPassOutcome, outcome)
}

// StartPassSpan starts the root span of a reconciliation pass.
func StartPassSpan(ctx context.Context, passID, trigger string, dryRun bool) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanPass,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(PassID(passID), Trigger(trigger), DryRun(dryRun)),
	)
}

// StartScopeSpan starts a child span covering one scope of a pass.
func StartScopeSpan(ctx context.Context, scope, prefix string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanScope, trace.WithAttributes(Scope(scope), Prefix(prefix)))
}

// StartDeleteSpan starts a span for a single object deletion.
func StartDeleteSpan(ctx context.Context, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{ObjectKey(key)}, attrs...)
	return StartSpan(ctx, SpanDelete, trace.WithAttributes(all...))
}

// StartStoreSpan starts a span for an object store call, tagged with the backend type.
func StartStoreSpan(ctx context.Context, name, storeType string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{StoreType(storeType)}, attrs...)
	return StartSpan(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(all...))
}
