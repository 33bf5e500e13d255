// Package rawbody captures the exact request bytes before anything parses them.
// Signature checks are computed over these bytes, so they are never re-encoded.
package rawbody

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	domainErrors "github.com/hudsor01/tenant-flow-sub011/internal/domain/errors"
	"github.com/labstack/echo/v4"
	"github.com/valyala/bytebufferpool"
)

const contextKey = "raw_body"

const chunkSize = 32 * 1024

var (
	// ErrEmptyBody is wrapped in a BodyReadError when the stream ends before any data.
	ErrEmptyBody = errors.New("request body is empty")

	// ErrTooLarge is wrapped in a BodyReadError when the body exceeds the limit.
	ErrTooLarge = errors.New("request body too large")
)

// Middleware buffers the whole body into the echo context and swaps in a
// fresh reader so later handlers can still consume Request().Body.
func Middleware(maxBytes int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			limited := http.MaxBytesReader(c.Response(), req.Body, maxBytes)

			buf := bytebufferpool.Get()
			defer bytebufferpool.Put(buf)

			if _, err := buf.ReadFrom(limited); err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					return respond(c, &domainErrors.BodyReadError{Err: ErrTooLarge})
				}
				return respond(c, &domainErrors.BodyReadError{Err: err})
			}
			if buf.Len() == 0 {
				return respond(c, &domainErrors.BodyReadError{Err: ErrEmptyBody})
			}

			// the pooled buffer is recycled after next returns
			body := append([]byte(nil), buf.B...)
			c.Set(contextKey, body)
			req.Body = io.NopCloser(bytes.NewReader(body))

			return next(c)
		}
	}
}

// FromContext returns the bytes captured by Middleware.
func FromContext(c echo.Context) ([]byte, bool) {
	body, ok := c.Get(contextKey).([]byte)
	return body, ok
}

// Read accumulates r chunk by chunk for callers that are not behind
// Middleware. The stream is consumed and cannot be read again.
func Read(r io.Reader, maxBytes int64) ([]byte, error) {
	if r == nil {
		return nil, &domainErrors.BodyReadError{Err: ErrEmptyBody}
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	chunk := make([]byte, chunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if maxBytes > 0 && int64(buf.Len()+n) > maxBytes {
				return nil, &domainErrors.BodyReadError{Err: ErrTooLarge}
			}
			_, _ = buf.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &domainErrors.BodyReadError{Err: err}
		}
	}

	if buf.Len() == 0 {
		return nil, &domainErrors.BodyReadError{Err: ErrEmptyBody}
	}
	return append([]byte(nil), buf.B...), nil
}

func respond(c echo.Context, err *domainErrors.BodyReadError) error {
	status := http.StatusBadRequest
	if errors.Is(err, ErrTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	return c.JSON(status, echo.Map{
		"error": err.Error(),
		"code":  "BODY_READ_FAILED",
	})
}
