package azure

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/manash/azimg/pkg/models"
)

const maxLoggedBase64 = 100

func (p *Provider) logRequest(ctx context.Context, req *http.Request, body []byte) {
	if !p.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	p.logger.DebugContext(ctx, "sending image request",
		"method", req.Method,
		"url", req.URL.String(),
		"headers", redactHeaders(req.Header),
		"body", string(body),
	)
}

func (p *Provider) logMultipartRequest(ctx context.Context, req *http.Request, edit *models.EditRequest) {
	if !p.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	var imageBytes int64
	for _, img := range edit.Images {
		imageBytes += img.Size()
	}
	attrs := []any{
		"method", req.Method,
		"url", req.URL.String(),
		"headers", redactHeaders(req.Header),
		"prompt", edit.Prompt,
		"images", len(edit.Images),
		"image_bytes", imageBytes,
		"size", edit.Params.Size,
		"n", edit.Params.N,
		"quality", edit.Params.Quality,
	}
	if edit.Mask != nil {
		attrs = append(attrs, "mask_bytes", edit.Mask.Size())
	}
	p.logger.DebugContext(ctx, "sending image edit request", attrs...)
}

func (p *Provider) logResponse(ctx context.Context, status int, body []byte) {
	if !p.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	p.logger.DebugContext(ctx, "received image response",
		"status", status,
		"body", string(truncateBase64InJSON(body)),
	)
}

func redactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		value := strings.Join(values, ", ")
		if strings.EqualFold(key, apiKeyHeader) || strings.EqualFold(key, "Authorization") {
			value = "[REDACTED]"
		}
		out[key] = value
	}
	return out
}

// truncateBase64InJSON shortens every data.N.b64_json so debug logs stay
// readable. Bodies that are not JSON are returned unchanged.
func truncateBase64InJSON(body []byte) []byte {
	if !gjson.ValidBytes(body) {
		return body
	}
	out := bytes.Clone(body)
	gjson.GetBytes(body, "data").ForEach(func(key, value gjson.Result) bool {
		b64 := value.Get("b64_json").String()
		if len(b64) <= maxLoggedBase64 {
			return true
		}
		updated, err := sjson.SetBytes(out, "data."+key.String()+".b64_json", b64[:maxLoggedBase64]+"... [truncated]")
		if err == nil {
			out = updated
		}
		return true
	})
	return out
}
