// Package middleware adapts kronicler capture to Go's function and
// net/http call shapes: a generic decorator for zero-argument closures,
// and net/http middleware constructors that time either the matched
// route's pattern or the request's literal URL path. All four respect
// kronicler.Enabled() once, at construction time, and degrade to an
// identity wrapper when capture is disabled — mirroring the original
// Python package's KRONICLER_ENABLED check at decoration time rather
// than on every call. Capture happens via a deferred recover/re-panic,
// so a row is always recorded even when the wrapped call panics, and
// the panic itself still propagates to the caller unchanged.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/JakeRoggenbuck/kronicler"
)

// Wrap returns a zero-argument closure that calls f and returns its
// result unchanged, capturing name, the call's start time, and its
// duration to db after f returns or panics.
//
// Go has no variadic-argument decorator shape that preserves an
// arbitrary function's signature the way Python's *args/**kwargs does,
// so unlike the decorator this was ported from, Wrap takes a
// zero-argument closure rather than wrapping an arbitrary function
// directly; callers close over whatever arguments they need. If
// capture is disabled at construction time, Wrap returns f itself.
func Wrap[T any](db *kronicler.Database, name string, f func() (T, error)) func() (T, error) {
	if !kronicler.Enabled() {
		return f
	}
	return func() (out T, err error) {
		start := time.Now().UnixNano()
		defer func() {
			end := time.Now().UnixNano()
			if r := recover(); r != nil {
				db.Capture(name, nil, start, end)
				panic(r)
			}
			db.Capture(name, nil, start, end)
		}()
		out, err = f()
		return out, err
	}
}

// FunctionMiddleware returns net/http middleware that captures one row
// per request, named after the matched handler rather than the literal
// path. On Go 1.23+, net/http.ServeMux populates Request.Pattern with
// the registered route template (e.g. "GET /users/{id}"); this
// middleware uses that when present, falling back to the literal path
// for requests that didn't arrive through a pattern-based mux.
//
// Degrades to an identity middleware at construction time when
// kronicler is disabled, so there is no per-request branch to pay for.
func FunctionMiddleware(db *kronicler.Database) func(http.Handler) http.Handler {
	if !kronicler.Enabled() {
		return identity
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := r.Pattern
			if name == "" {
				name = r.URL.Path
			}
			capture(db, name, next, w, r)
		})
	}
}

// EndpointMiddleware behaves like FunctionMiddleware but always
// captures the literal, expanded request path (r.URL.Path), for
// handlers where the registered route template is less meaningful than
// the concrete URL actually hit (a shared dispatcher, a catch-all
// handler).
func EndpointMiddleware(db *kronicler.Database) func(http.Handler) http.Handler {
	if !kronicler.Enabled() {
		return identity
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capture(db, r.URL.Path, next, w, r)
		})
	}
}

func capture(db *kronicler.Database, name string, next http.Handler, w http.ResponseWriter, r *http.Request) {
	start := time.Now().UnixNano()
	defer func() {
		end := time.Now().UnixNano()
		if rec := recover(); rec != nil {
			db.Capture(name, nil, start, end)
			panic(rec)
		}
		db.Capture(name, nil, start, end)
	}()
	next.ServeHTTP(w, r)
}

var deprecationWarned sync.Once

// DeprecatedMiddleware is FunctionMiddleware under the ambiguous name
// this package shipped before FunctionMiddleware and EndpointMiddleware
// split its two behaviors apart. It logs a one-time deprecation warning
// via db's logger, mirroring the Python package's runtime
// DeprecationWarning, then behaves exactly like FunctionMiddleware.
func DeprecatedMiddleware(db *kronicler.Database) func(http.Handler) http.Handler {
	deprecationWarned.Do(func() {
		db.Logger().Warn().Msg("middleware.DeprecatedMiddleware is deprecated, use FunctionMiddleware or EndpointMiddleware")
	})
	return FunctionMiddleware(db)
}

func identity(next http.Handler) http.Handler { return next }
