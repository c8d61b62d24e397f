package hook

import (
	"net/http"
)

// PrepareFunc is called once per response with the status code about to be
// written. Header changes made by it are sent to the client.
type PrepareFunc func(statusCode int, header http.Header)

// ResponseWriter is a wrapper around http.ResponseWriter that runs a prepare
// callback right before the response headers are written.
type ResponseWriter struct {
	rw           http.ResponseWriter
	prepare      PrepareFunc
	status       int
	wroteHeaders bool
}

// Implementation of http.ResponseWriter
func (h *ResponseWriter) Header() http.Header {
	return h.rw.Header()
}

// Implementation of http.ResponseWriter
func (h *ResponseWriter) WriteHeader(statusCode int) {
	if h.wroteHeaders {
		// let the underlying writer complain about superfluous calls
		h.rw.WriteHeader(statusCode)
		return
	}
	// informational responses are not the final header set
	if statusCode >= 100 && statusCode < 200 && statusCode != http.StatusSwitchingProtocols {
		h.rw.WriteHeader(statusCode)
		return
	}
	h.wroteHeaders = true
	h.status = statusCode
	if h.prepare != nil {
		h.prepare(statusCode, h.rw.Header())
	}
	h.rw.WriteHeader(statusCode)
}

// Implementation of http.ResponseWriter
func (h *ResponseWriter) Write(b []byte) (int, error) {
	// write headers if not already written
	if !h.wroteHeaders {
		h.WriteHeader(http.StatusOK)
	}
	return h.rw.Write(b)
}

// StatusCode returns the status code of the response, or 0 if nothing was written yet.
func (h *ResponseWriter) StatusCode() int {
	return h.status
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (h *ResponseWriter) Unwrap() http.ResponseWriter {
	return h.rw
}

// NewResponseWriter returns a writer calling prepare before headers go out.
func NewResponseWriter(w http.ResponseWriter, prepare PrepareFunc) *ResponseWriter {
	return &ResponseWriter{
		rw:      w,
		prepare: prepare,
	}
}
