package dispatch

import (
	"bytes"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"

	"github.com/always-cache/easyfetch/envelope"
)

// GzipInterceptor inflates gzip-encoded response data. The Content-Encoding
// header is dropped afterwards, so running it twice is harmless.
type GzipInterceptor struct{}

func (GzipInterceptor) InterceptResponse(res *envelope.Response) *envelope.Response {
	if res == nil || len(res.Data) == 0 || !strings.EqualFold(strings.TrimSpace(res.Header("Content-Encoding")), "gzip") {
		return res
	}
	zr, err := gzip.NewReader(bytes.NewReader(res.Data))
	if err != nil {
		log.Warn().Err(err).Msg("Could not read gzip body, leaving it as is")
		return res
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		log.Warn().Err(err).Msg("Could not inflate gzip body, leaving it as is")
		return res
	}
	out := res.Clone()
	out.Data = data
	out.Headers.Del("Content-Encoding")
	out.Headers.Del("Content-Length")
	return out
}
