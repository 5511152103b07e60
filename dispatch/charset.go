package dispatch

import (
	"mime"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/always-cache/easyfetch/envelope"
)

// BodyString decodes the response data using the charset declared in the
// Content-Type header. Missing or unknown charsets fall back to UTF-8.
func BodyString(res *envelope.Response) string {
	if res == nil || len(res.Data) == 0 {
		return ""
	}
	charset := contentCharset(res.Header("Content-Type"))
	if charset == "" || strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "utf8") {
		return string(res.Data)
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		log.Debug().Str("charset", charset).Msg("Unknown charset, decoding as UTF-8")
		return string(res.Data)
	}
	decoded, err := enc.NewDecoder().Bytes(res.Data)
	if err != nil {
		log.Warn().Err(err).Str("charset", charset).Msg("Could not decode body, using raw bytes")
		return string(res.Data)
	}
	return string(decoded)
}

func contentCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}
