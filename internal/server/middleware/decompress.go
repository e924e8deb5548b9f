package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang/snappy"
)

// DecompressMiddleware распаковывает тела запросов с Content-Encoding: snappy.
// Тело ограничивается maxBytes после распаковки.
func DecompressMiddleware(logger *slog.Logger, maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			encoding := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding")))
			switch encoding {
			case "", "identity":
				if maxBytes > 0 {
					r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
				}
			case "snappy":
				r.Body = &snappyBody{
					Reader: snappy.NewReader(r.Body),
					closer: r.Body,
				}
				if maxBytes > 0 {
					r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
				}
				r.Header.Del("Content-Encoding")
				r.ContentLength = -1
			default:
				logger.WarnContext(r.Context(), "Unsupported content encoding", "encoding", encoding)
				writeError(w, "unsupported content encoding "+encoding, http.StatusUnsupportedMediaType)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// snappyBody читает распакованный поток и закрывает исходное тело
type snappyBody struct {
	io.Reader
	closer io.Closer
}

func (b *snappyBody) Close() error {
	return b.closer.Close()
}
