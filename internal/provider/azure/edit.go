package azure

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/manash/azimg/internal/provider"
	"github.com/manash/azimg/pkg/models"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (p *Provider) Edit(ctx context.Context, req *models.EditRequest) (*models.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writeEditForm(writer, req); err != nil {
		return nil, &provider.UnknownError{Message: err.Error(), Err: err}
	}

	if err := writer.Close(); err != nil {
		return nil, &provider.UnknownError{Message: fmt.Sprintf("failed to close multipart writer: %v", err), Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.operationURL("edits"), body)
	if err != nil {
		return nil, &provider.UnknownError{Message: fmt.Sprintf("failed to create request: %v", err), Err: err}
	}

	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set(apiKeyHeader, p.apiKey)

	p.logMultipartRequest(ctx, httpReq, req)

	return p.do(ctx, httpReq)
}

func writeEditForm(writer *multipart.Writer, req *models.EditRequest) error {
	for i, img := range req.Images {
		if err := writeFilePart(writer, "image[]", img, fmt.Sprintf("image-%d.png", i+1)); err != nil {
			return fmt.Errorf("failed to write image %d: %w", i+1, err)
		}
	}

	params := req.Params
	fields := []struct {
		name, value string
	}{
		{"prompt", req.Prompt},
		{"model", models.ImageModel},
		{"size", string(params.Size)},
		{"n", strconv.Itoa(params.N)},
		{"quality", string(params.Quality)},
	}
	for _, f := range fields {
		if err := writer.WriteField(f.name, f.value); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.name, err)
		}
	}

	if params.InputFidelity != "" {
		if err := writer.WriteField("input_fidelity", string(params.InputFidelity)); err != nil {
			return fmt.Errorf("failed to write input_fidelity: %w", err)
		}
	}

	if req.Mask != nil {
		if err := writeFilePart(writer, "mask", *req.Mask, "mask.png"); err != nil {
			return fmt.Errorf("failed to write mask: %w", err)
		}
	}

	if params.OutputFormat != "" {
		if err := writer.WriteField("output_format", params.OutputFormat.String()); err != nil {
			return fmt.Errorf("failed to write output_format: %w", err)
		}
	}

	if params.OutputCompression != 0 {
		if err := writer.WriteField("output_compression", strconv.Itoa(params.OutputCompression)); err != nil {
			return fmt.Errorf("failed to write output_compression: %w", err)
		}
	}

	if params.Stream {
		if err := writer.WriteField("stream", "true"); err != nil {
			return fmt.Errorf("failed to write stream: %w", err)
		}
	}

	if params.User != "" {
		if err := writer.WriteField("user", params.User); err != nil {
			return fmt.Errorf("failed to write user: %w", err)
		}
	}

	return nil
}

// writeFilePart is CreateFormFile with the file's own content type.
func writeFilePart(writer *multipart.Writer, field string, file models.InputFile, fallbackName string) error {
	name := file.Name
	if name == "" {
		name = fallbackName
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(name)))
	h.Set("Content-Type", contentType)

	part, err := writer.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(file.Data)
	return err
}
