package common

import (
	"fmt"
	"os"

	"github.com/ternarybob/arbor"
)

// SafeGo runs a function in a goroutine with panic recovery.
// Panics are logged but don't crash the bot.
//
// Example:
//
//	common.SafeGo(logger, "websocketCloser", func() {
//	    <-ctx.Done()
//	    conn.Close()
//	})
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	go func() {
		var err error
		defer CatchPanic(logger, name, &err)
		fn()
	}()
}

// CatchPanic converts a panic in the calling function into an error.
// It must be deferred directly:
//
//	defer common.CatchPanic(logger, "pollCycle", &err)
func CatchPanic(logger arbor.ILogger, name string, err *error) {
	r := recover()
	if r == nil {
		return
	}

	stackTrace := stackDump(false)

	if logger != nil {
		logger.Error().
			Str("goroutine", name).
			Str("panic", fmt.Sprintf("%v", r)).
			Str("stack", stackTrace).
			Msg("Recovered from panic - continuing")
	} else {
		fmt.Fprintf(os.Stderr, "PANIC in %s: %v\n%s\n", name, r, stackTrace)
	}

	if err != nil {
		*err = fmt.Errorf("panic in %s: %v", name, r)
	}
}
