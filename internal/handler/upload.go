package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"catalog-service/internal/attachment"

	"github.com/labstack/echo/v4"
)

func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// readUpload loads an uploaded file into memory. Files larger than limit are
// truncated to limit+1 bytes, which is enough for the size check to reject them.
func readUpload(fh *multipart.FileHeader, limit int64) (attachment.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return attachment.Upload{}, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	var r io.Reader = f
	if limit > 0 {
		r = io.LimitReader(f, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return attachment.Upload{}, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
	}
	return attachment.Upload{Filename: fh.Filename, Data: data}, nil
}

// formFile returns the single file sent as field, or nil when absent
func formFile(c echo.Context, field string, limit int64) (*attachment.Upload, error) {
	if !isMultipart(c) {
		return nil, nil
	}
	fh, err := c.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u, err := readUpload(fh, limit)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// formFiles returns every file sent under any of fields, in order
func formFiles(c echo.Context, limit int64, fields ...string) ([]attachment.Upload, error) {
	if !isMultipart(c) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	var uploads []attachment.Upload
	for _, field := range fields {
		for _, fh := range form.File[field] {
			u, err := readUpload(fh, limit)
			if err != nil {
				return nil, err
			}
			uploads = append(uploads, u)
		}
	}
	return uploads, nil
}
