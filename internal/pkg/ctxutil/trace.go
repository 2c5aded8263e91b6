// Package ctxutil carries request identity from the HTTP layer into jobs.
package ctxutil

import "context"

type traceDataKey struct{}

// TraceData is copied into job_run payloads so worker logs join back to the
// request that queued the job.
type TraceData struct {
	TraceID   string
	RequestID string
}

// Default treats a nil ctx as context.Background().
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(Default(ctx), traceDataKey{}, td)
}

// GetTraceData is nil when ctx carries no trace data.
func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	td, _ := ctx.Value(traceDataKey{}).(*TraceData)
	return td
}
