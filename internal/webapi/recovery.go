package webapi

import (
	"net/http"
	"runtime/debug"

	"github.com/pion/logging"
)

// recoveryMiddleware recovers from panics in downstream handlers, logging
// the stack trace and returning a generic 500 if the response hasn't
// already been written to.
func recoveryMiddleware(log logging.LeveledLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Errorf("panic: %v\n%s", err, debug.Stack())
					if !headerWritten(w) {
						internalError(w)
					}
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func headerWritten(w http.ResponseWriter) bool {
	return w.Header().Get("Content-Type") != "" || w.Header().Get("Content-Length") != ""
}
