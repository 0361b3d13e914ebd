package actor

import (
	"context"
	"fmt"
	"strings"

	"github.com/btcsuite/btclog/v2"
)

// subsystemLogger adapts the keyword-argument call sites used throughout
// this package (DebugS/TraceS/WarnS/ErrorS/InfoS) onto btclog.Logger, which
// only exposes Printf-style and plain Print-style methods. The formatting
// convention here (space-joined "key=value" pairs appended to the message)
// follows the same keyword-logging idiom btclog-based daemons in this
// codebase use elsewhere; ctx is accepted for call-site symmetry and future
// correlation-id propagation but is not otherwise consulted.
type subsystemLogger struct {
	btclog.Logger
}

// log is the package-level subsystem logger used throughout the actor
// kernel. It defaults to a disabled logger so importing this package without
// calling UseLogger produces no output, matching the convention used by
// btcsuite/lnd-style subsystems.
var log = subsystemLogger{btclog.Disabled}

// UseLogger sets the actor package's subsystem logger. Callers (typically
// cmd/cellmesh's daemon wiring) should call this once during startup before
// any Node is constructed.
func UseLogger(logger btclog.Logger) {
	log.Logger = logger
}

func withKV(msg string, kvs ...interface{}) string {
	if len(kvs) == 0 {
		return msg
	}

	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(kvs); i += 2 {
		b.WriteByte(' ')
		fmt.Fprintf(&b, "%v=%v", kvs[i], kvs[i+1])
	}

	return b.String()
}

// DebugS logs msg at debug level with the given alternating key/value pairs.
func (l subsystemLogger) DebugS(_ context.Context, msg string, kvs ...interface{}) {
	l.Debug(withKV(msg, kvs...))
}

// TraceS logs msg at trace level with the given alternating key/value pairs.
func (l subsystemLogger) TraceS(_ context.Context, msg string, kvs ...interface{}) {
	l.Trace(withKV(msg, kvs...))
}

// InfoS logs msg at info level with the given alternating key/value pairs.
func (l subsystemLogger) InfoS(_ context.Context, msg string, kvs ...interface{}) {
	l.Info(withKV(msg, kvs...))
}

// WarnS logs msg at warn level, folding a non-nil err into the message, with
// the given alternating key/value pairs.
func (l subsystemLogger) WarnS(_ context.Context, msg string, err error, kvs ...interface{}) {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	l.Warn(withKV(msg, kvs...))
}

// ErrorS logs msg at error level, folding a non-nil err into the message,
// with the given alternating key/value pairs.
func (l subsystemLogger) ErrorS(_ context.Context, msg string, err error, kvs ...interface{}) {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	l.Error(withKV(msg, kvs...))
}
