package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently so pass logs can be aggregated and queried.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Pass identification
	KeyPassID  = "pass_id"
	KeyTrigger = "trigger"
	KeyScope   = "scope"
	KeyScopes  = "scopes"

	// Objects and references
	KeyObjectKey  = "object_key"
	KeyPrefix     = "prefix"
	KeyLiveKeys   = "live_keys"
	KeyListed     = "listed"
	KeyOrphans    = "orphans"
	KeyAttempted  = "attempted"
	KeyDeleted    = "deleted"
	KeyFailed     = "failed"
	KeySkipped    = "skipped"
	KeyBytes      = "bytes_reclaimed"
	KeyPages      = "pages"
	KeyDryRun     = "dry_run"
	KeyGrace      = "grace_period"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyOperation  = "operation"

	// Storage backends
	KeyStoreType = "store_type"
	KeyBucket    = "bucket"
	KeyContainer = "container"
	KeyRegion    = "region"
)

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// PassID returns a slog.Attr for the pass identifier
func PassID(id string) slog.Attr {
	return slog.String(KeyPassID, id)
}

// Scope returns a slog.Attr for a tenant scope
func Scope(scope string) slog.Attr {
	return slog.String(KeyScope, scope)
}

// ObjectKey returns a slog.Attr for an object key
func ObjectKey(key string) slog.Attr {
	return slog.String(KeyObjectKey, key)
}

// DurationMs returns a slog.Attr for a duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error, empty when err is nil
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// StoreType returns a slog.Attr for a backend type
func StoreType(t string) slog.Attr {
	return slog.String(KeyStoreType, t)
}
