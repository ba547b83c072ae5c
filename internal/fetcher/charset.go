package fetcher

import (
	"mime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
)

// decodeBody converts body to UTF-8 using the charset parameter of
// contentType. The body is returned unchanged when no charset is declared,
// it is already UTF-8, or the charset is unknown.
func decodeBody(body []byte, contentType string) []byte {
	if contentType == "" {
		return body
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body
	}
	charset := strings.ToLower(strings.TrimSpace(params["charset"]))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return body
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		zap.L().Debug("unsupported charset, using raw body", zap.String("charset", charset))
		return body
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		zap.L().Debug("charset decode failed, using raw body",
			zap.String("charset", charset), zap.Error(err))
		return body
	}
	return decoded
}
