package httpx

import "net/http"

// writeTracker is implemented by response writers that know whether the
// status line has been sent.
type writeTracker interface {
	Written() bool
}

type trackingWriter struct {
	http.ResponseWriter
	wrote bool
}

// Track wraps w so the error handler can tell whether a response was
// already started. Writers that already track this are returned unchanged.
func Track(w http.ResponseWriter) http.ResponseWriter {
	if _, ok := w.(writeTracker); ok {
		return w
	}
	return &trackingWriter{ResponseWriter: w}
}

func (t *trackingWriter) WriteHeader(code int) {
	t.wrote = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	t.wrote = true
	return t.ResponseWriter.Write(p)
}

func (t *trackingWriter) Written() bool { return t.wrote }

func (t *trackingWriter) Unwrap() http.ResponseWriter { return t.ResponseWriter }

// Written reports whether a response has already been started on w.
func Written(w http.ResponseWriter) bool {
	if tracker, ok := w.(writeTracker); ok {
		return tracker.Written()
	}
	return false
}
