package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"leasecover/internal/policy/models"
	dErrors "leasecover/pkg/domain-errors"
	"leasecover/pkg/platform/httputil"
	"leasecover/pkg/requestcontext"
)

// multipartOverhead leaves room for the form fields around the file part.
const multipartOverhead = 1 << 20

type upload struct {
	file   *models.FileUpload
	fields map[string][]string
}

func (u upload) field(name string) string {
	if v := u.fields[name]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

// readUpload parses a multipart body carrying one "file" part. The declared
// part content type wins; otherwise it is sniffed from the first bytes.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (upload, bool) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "file exceeds the upload size limit"))
			return upload{}, false
		}
		h.logger.WarnContext(ctx, "invalid multipart body",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "multipart form body is required"))
		return upload{}, false
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "file part is required"))
		return upload{}, false
	}
	defer part.Close()

	content, err := io.ReadAll(io.LimitReader(part, h.maxUpload+1))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read file part"))
		return upload{}, false
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(content)
	}
	return upload{
		file: &models.FileUpload{
			FileName:    header.Filename,
			ContentType: contentType,
			Size:        int64(len(content)),
			Content:     content,
		},
		fields: r.MultipartForm.Value,
	}, true
}
