package panicrecovery

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
)

// HandleEventualPanic recovers panic from a goroutine and prints the stack
// trace. It must be deferred directly. The cancel function, when not nil,
// is called so that the goroutines sharing the context stop as well.
func HandleEventualPanic(source string, cancel context.CancelFunc) {

	r := recover()
	if r == nil {
		return
	}

	logPanic(source, r)

	if cancel != nil {
		cancel()
	}
}

// HandleEventualPanicWithReport recovers panic from a goroutine and hands it
// to report as an error instead of stopping anything else.
func HandleEventualPanicWithReport(source string, report func(err error)) {

	r := recover()
	if r == nil {
		return
	}

	logPanic(source, r)

	if report != nil {
		report(fmt.Errorf("panic in %s: %v", source, r))
	}
}

func logPanic(source string, r interface{}) {

	zap.L().Error("Panic in ",
		zap.String("source", source),
		zap.Any("panic", r),
		zap.String("stacktrace", string(debug.Stack())),
	)
}
