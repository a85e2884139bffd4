package sanitize

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/noah-isme/toko-commerce/internal/common"
)

// Middleware sanitizes query parameters and JSON request bodies before any
// downstream handler reads them. Bodies that are not JSON, fail to decode or
// carry trailing values are passed through untouched for the handler to reject.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			r.URL.RawQuery = cleanQuery(r.URL.Query()).Encode()
		}
		if r.Body != nil && r.Body != http.NoBody && isJSON(r.Header.Get("Content-Type")) {
			if err := cleanBody(r); err != nil {
				common.JSONError(w, http.StatusBadRequest, "invalid request body", "INVALID_BODY")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func cleanQuery(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for key, vals := range values {
		out[key] = Value(vals).([]string)
	}
	return out
}

func cleanBody(r *http.Request) error {
	raw, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		return err
	}
	body := raw
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var decoded any
	// a body holding more than one JSON value is left for the handler to reject
	if err := dec.Decode(&decoded); err == nil && !dec.More() {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(Value(decoded)); err == nil {
			body = bytes.TrimRight(buf.Bytes(), "\n")
		}
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return nil
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || len(mediaType) > 5 && mediaType[len(mediaType)-5:] == "+json"
}
