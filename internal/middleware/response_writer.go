package middleware

import "net/http"

// statusRecorder は最初に書き込まれたステータスを覚えておくResponseWriter。
// ログ・メトリクス・リカバリで共有し、二重にラップしない。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	if sr, ok := w.(*statusRecorder); ok {
		return sr
	}
	return &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
}

func (sr *statusRecorder) markWritten(code int) {
	if sr.written {
		return
	}
	sr.statusCode = code
	sr.written = true
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.markWritten(code)
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	sr.markWritten(http.StatusOK)
	return sr.ResponseWriter.Write(b)
}

// Flush はExcelエクスポートのような逐次書き込みで使う。
func (sr *statusRecorder) Flush() {
	sr.markWritten(http.StatusOK)
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap はhttp.ResponseControllerが元のWriterへ到達するために使う。
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}
