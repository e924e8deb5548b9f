package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snappyEncode(t *testing.T, data string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w := snappy.NewBufferedWriter(&buf)
	_, err := w.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf
}

func echoBody(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	_, _ = w.Write(data)
}

func TestDecompressMiddleware(t *testing.T) {
	payload := `{"device_id":"tablet-01","deltas":[]}`

	tests := []struct {
		body     io.Reader
		name     string
		encoding string
		want     string
		maxBytes int64
		wantCode int
	}{
		{name: "plain", body: strings.NewReader(payload), want: payload, wantCode: http.StatusOK},
		{name: "snappy", encoding: "snappy", body: snappyEncode(t, payload), want: payload, wantCode: http.StatusOK},
		{name: "snappy over limit", encoding: "snappy", body: snappyEncode(t, payload), maxBytes: 10, wantCode: http.StatusRequestEntityTooLarge},
		{name: "plain over limit", body: strings.NewReader(payload), maxBytes: 10, wantCode: http.StatusRequestEntityTooLarge},
		{name: "unsupported", encoding: "br", body: strings.NewReader(payload), wantCode: http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := DecompressMiddleware(setupTestLogger(), tt.maxBytes)(http.HandlerFunc(echoBody))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/batches", tt.body)
			if tt.encoding != "" {
				req.Header.Set("Content-Encoding", tt.encoding)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.want, w.Body.String())
			}
		})
	}
}
