// Package handlers implements the LegalLens REST endpoints. Every response
// uses the envelope {"success": bool, "data": ..., "error": {code, message}}.
package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/LegalLens/internal/application/pipeline"
	"github.com/turtacn/LegalLens/pkg/errors"
)

// DefaultMaxUploadSize bounds a single uploaded file.
const DefaultMaxUploadSize int64 = 20 << 20

// ErrorBody is the error member of the response envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, code errors.ErrorCode, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   ErrorBody{Code: code.String(), Message: message},
	})
}

// respondAppError maps an error to its HTTP status. Server-side failures are
// masked; the detail goes to the request log through c.Error.
func respondAppError(c *gin.Context, err error) {
	_ = c.Error(err)
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)
	if status >= http.StatusInternalServerError {
		if code == errors.CodeUnknown {
			code = errors.ErrCodeInternal
		}
		respondError(c, status, code, errors.DefaultMessageForCode(code))
		return
	}
	message := err.Error()
	var ae *errors.AppError
	if errors.As(err, &ae) {
		message = ae.Message
	}
	respondError(c, status, code, message)
}

func respondBindError(c *gin.Context, err error) {
	respondError(c, http.StatusBadRequest, errors.ErrCodeBadRequest, err.Error())
}

// queryInt reads a non-negative integer query parameter.
func queryInt(c *gin.Context, name string, def int) int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// readUpload loads one multipart file into memory.
func readUpload(fh *multipart.FileHeader, limit int64) (pipeline.FileInput, error) {
	if fh.Size > limit {
		return pipeline.FileInput{}, errors.Newf(errors.ErrCodeBadRequest,
			"file %s exceeds the maximum of %d bytes", fh.Filename, limit)
	}
	f, err := fh.Open()
	if err != nil {
		return pipeline.FileInput{}, errors.Wrap(err, errors.ErrCodeBadRequest, "failed to open upload")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return pipeline.FileInput{}, errors.Wrap(err, errors.ErrCodeBadRequest, "failed to read upload")
	}
	if int64(len(data)) > limit {
		return pipeline.FileInput{}, errors.Newf(errors.ErrCodeBadRequest,
			"file %s exceeds the maximum of %d bytes", fh.Filename, limit)
	}
	return pipeline.FileInput{Filename: fh.Filename, Data: data}, nil
}

// formFile returns the named upload, or nil when the field is absent.
func formFile(form *multipart.Form, field string, limit int64) (*pipeline.FileInput, error) {
	if form == nil || len(form.File[field]) == 0 {
		return nil, nil
	}
	in, err := readUpload(form.File[field][0], limit)
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// formFiles returns every upload under field.
func formFiles(form *multipart.Form, field string, limit int64) ([]pipeline.FileInput, error) {
	if form == nil {
		return nil, nil
	}
	var out []pipeline.FileInput
	for _, fh := range form.File[field] {
		in, err := readUpload(fh, limit)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}
