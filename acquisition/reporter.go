package acquisition

import (
	"context"
	"time"

	"github.com/airbusgeo/s2-acquisition/common"
	"github.com/airbusgeo/s2-acquisition/service/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NopReporter ignores all the events
type NopReporter struct{}

// Report implements Reporter
func (NopReporter) Report(context.Context, common.Event) {}

// ReporterFunc is an adapter to use a function as a Reporter
type ReporterFunc func(ctx context.Context, event common.Event)

// Report implements Reporter
func (f ReporterFunc) Report(ctx context.Context, event common.Event) { f(ctx, event) }

// MultiReporter sends the events to all its reporters, in order
type MultiReporter []Reporter

// Report implements Reporter
func (m MultiReporter) Report(ctx context.Context, event common.Event) {
	for _, r := range m {
		r.Report(ctx, event)
	}
}

// LogReporter logs the events with the logger of the context
type LogReporter struct{}

// Report implements Reporter
func (LogReporter) Report(ctx context.Context, e common.Event) {
	fields := []zap.Field{zap.Stringer("event", e.Type), zap.Stringer("phase", e.Phase), zap.Int("round", e.Round)}
	level := zapcore.InfoLevel
	switch e.Type {
	case common.EventQueried, common.EventDownloadStarted, common.EventDownloadFinished, common.EventStale:
		fields = append(fields, zap.Int("products", len(e.Products)))
	case common.EventClassifying:
		level = zapcore.DebugLevel
		fields = append(fields, zap.Int("products", len(e.Products)))
	case common.EventClassified:
		fields = append(fields, zap.Int("online", e.Online), zap.Int("offline", e.Offline))
	case common.EventRoundStarted:
		fields = append(fields, zap.Int("offline", e.Offline))
	case common.EventReactivationRequested:
		level = zapcore.DebugLevel
		fields = append(fields, zap.String("product", string(e.Product)))
		if e.Outcome != nil {
			fields = append(fields, zap.Stringer("outcome", *e.Outcome))
		}
	case common.EventRoundFinished:
		fields = append(fields, zap.Int("accepted", e.Accepted), zap.Int("declined", e.Declined))
	case common.EventWaiting:
		fields = append(fields, zap.Duration("wait", time.Duration(e.Wait)))
	case common.EventDownloadFailed:
		level = zapcore.ErrorLevel
		fields = append(fields, zap.Any("products", e.Products), zap.String("error", e.Error))
	case common.EventDone:
		if e.Status != nil {
			fields = append(fields, zap.Stringer("status", *e.Status))
		}
		fields = append(fields, zap.Int("still_offline", len(e.Products)))
	case common.EventAborted:
		level = zapcore.ErrorLevel
		fields = append(fields, zap.String("error", e.Error))
	}
	if ce := log.Logger(ctx).Check(level, "acquisition"); ce != nil {
		ce.Write(fields...)
	}
}
