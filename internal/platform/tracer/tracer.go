// Package tracer is the tracing seam used by the ledger gateway and the
// workflows. Callers depend on the Tracer interface; production wires the
// OpenTelemetry adapter and tests use the no-op tracer.
package tracer

import (
	"context"
	"time"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span and marks it failed when err is non-nil.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
//
//	ctx, span := tr.Start(ctx, tracer.SpanLedgerInvoke,
//	    tracer.String(tracer.AttrMethod, "generateCertificate"),
//	)
//	defer func() { span.End(err) }()
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Uint64(key string, value uint64) Attribute {
	return Attribute{Key: key, Value: int64(value)}
}

// Duration records value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanLedgerInvoke   = "ledger.invoke"
	SpanLedgerQuery    = "ledger.query"
	SpanIssueSubmit    = "issuance.submit"
	SpanVerify         = "verification.verify"
	SpanRenderExport   = "render.export"
	SpanBindingRefresh = "binding.refresh"
)

// Attribute keys.
const (
	AttrMethod        = "ledger.method"
	AttrMode          = "ledger.mode"
	AttrNetworkID     = "network.id"
	AttrGeneration    = "network.generation"
	AttrCertificateID = "certificate.id"
	AttrTransaction   = "ledger.tx"
	AttrAuthentic     = "certificate.authentic"
	AttrArtifactBytes = "artifact.bytes"
)

// Event names.
const (
	EventReceiptPending = "receipt.pending"
	EventDetailsMissing = "details.unavailable"
)
