package executor

import (
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

type readCloser struct {
	io.Reader
	closers []func() error
}

func (r *readCloser) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// decodeResponseBody wraps body with the decoder named by contentEncoding.
// Unknown and identity encodings pass the body through.
func decodeResponseBody(body io.ReadCloser, contentEncoding string) (io.ReadCloser, error) {
	if body == nil {
		return nil, errors.New("executor: nil response body")
	}
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(body)
		if err != nil {
			_ = body.Close()
			return nil, fmt.Errorf("executor: gzip: %w", err)
		}
		return &readCloser{Reader: gz, closers: []func() error{gz.Close, body.Close}}, nil
	case "br":
		return &readCloser{Reader: brotli.NewReader(body), closers: []func() error{body.Close}}, nil
	case "zstd":
		dec, err := zstd.NewReader(body)
		if err != nil {
			_ = body.Close()
			return nil, fmt.Errorf("executor: zstd: %w", err)
		}
		return &readCloser{Reader: dec, closers: []func() error{func() error { dec.Close(); return nil }, body.Close}}, nil
	case "deflate":
		fr := flate.NewReader(body)
		return &readCloser{Reader: fr, closers: []func() error{fr.Close, body.Close}}, nil
	default:
		return body, nil
	}
}
