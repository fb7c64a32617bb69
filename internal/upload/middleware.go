package upload

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/online_store/internal/imaging"
	"github.com/Skotchmaster/online_store/internal/logging"
	"github.com/Skotchmaster/online_store/internal/objectstore"
)

const (
	// MaxFileSize caps a single uploaded file.
	MaxFileSize = 5 << 20
	// formOverhead leaves room for the non-file fields of the form.
	formOverhead = 1 << 20
	// UploadTimeout replaces the server read and write deadlines for a
	// multipart request, which waits on the object store before responding.
	UploadTimeout = 2 * time.Minute

	DataField      = "data"
	ImageURLField  = "awsImageUrl"
	imageTypeField = "imageType"
)

// Single handles a multipart form with at most one file in field. The JSON
// in the "data" field becomes the request body, with "imageType" removed and
// "awsImageUrl" set when an image was published. Other requests pass
// through untouched.
func (p *Pipeline) Single(field string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
				return next(c)
			}

			ctx := req.Context()
			l := logging.FromContext(ctx).With("middleware", "upload.single", "field", field)

			extendDeadlines(c, l)
			req.Body = http.MaxBytesReader(c.Response(), req.Body, MaxFileSize+formOverhead)
			form, err := c.MultipartForm()
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					l.Warn("upload_failed", "status", 413, "reason", "request too large", "error", err)
					return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File too large")
				}
				l.Warn("upload_failed", "status", 400, "reason", "invalid multipart form", "error", err)
				return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
			}
			defer form.RemoveAll()

			body := map[string]any{}
			if vals := form.Value[DataField]; len(vals) > 0 && strings.TrimSpace(vals[0]) != "" {
				if err := json.Unmarshal([]byte(vals[0]), &body); err != nil {
					l.Warn("upload_failed", "status", 400, "reason", "data field is not a JSON object", "error", err)
					return echo.NewHTTPError(http.StatusBadRequest, "invalid data field")
				}
			}
			delete(body, imageTypeField)

			if files := form.File[field]; len(files) > 0 {
				ref, err := p.processPart(c, files[0])
				if err != nil {
					return err
				}
				if ref != nil {
					body[ImageURLField] = ref.URL
				}
			}

			raw, err := json.Marshal(body)
			if err != nil {
				l.Error("upload_failed", "status", 500, "reason", "cannot encode body", "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "cannot encode body")
			}

			rewritten := req.Clone(ctx)
			rewritten.Body = io.NopCloser(bytes.NewReader(raw))
			rewritten.ContentLength = int64(len(raw))
			rewritten.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rewritten.Header.Set(echo.HeaderContentLength, strconv.Itoa(len(raw)))
			rewritten.MultipartForm = nil
			rewritten.Form = nil
			rewritten.PostForm = nil
			c.SetRequest(rewritten)

			return next(c)
		}
	}
}

func extendDeadlines(c echo.Context, l *slog.Logger) {
	rc := http.NewResponseController(c.Response())
	deadline := time.Now().Add(UploadTimeout)
	if err := rc.SetReadDeadline(deadline); err != nil {
		l.Debug("read_deadline_unchanged", "error", err)
	}
	if err := rc.SetWriteDeadline(deadline); err != nil {
		l.Debug("write_deadline_unchanged", "error", err)
	}
}

func (p *Pipeline) processPart(c echo.Context, fh *multipart.FileHeader) (*objectstore.Reference, error) {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("middleware", "upload.single", "filename", fh.Filename)

	if fh.Size > MaxFileSize {
		l.Warn("upload_failed", "status", 413, "reason", "file too large", "size", fh.Size)
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File too large")
	}

	src, err := fh.Open()
	if err != nil {
		l.Error("upload_failed", "status", 500, "reason", "cannot open file part", "error", err)
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "cannot read file")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		l.Error("upload_failed", "status", 500, "reason", "cannot read file part", "error", err)
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "cannot read file")
	}

	ref, err := p.Process(ctx, File{
		Data:     data,
		MIMEType: fh.Header.Get(echo.HeaderContentType),
		Filename: fh.Filename,
	})
	switch {
	case errors.Is(err, imaging.ErrUnsupportedImage):
		l.Warn("upload_failed", "status", 400, "reason", "unsupported image", "error", err)
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Unsupported image")
	case errors.Is(err, objectstore.ErrUploadFailed):
		l.Error("upload_failed", "status", 502, "reason", "object store", "error", err)
		return nil, echo.NewHTTPError(http.StatusBadGateway, "Image upload failed")
	case err != nil:
		l.Error("upload_failed", "status", 500, "reason", "pipeline error", "error", err)
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "Image upload failed")
	}
	return ref, nil
}
