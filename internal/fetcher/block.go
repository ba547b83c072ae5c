package fetcher

import (
	"bytes"
	"net/http"
)

// BlockType describes the kind of anti-bot block behind a failed response.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
)

// DetectBlock labels a 403/503 response that carries anti-bot markers.
// Blocked responses are not retried.
func DetectBlock(statusCode int, header http.Header, body []byte) BlockType {
	if statusCode != http.StatusForbidden && statusCode != http.StatusServiceUnavailable {
		return BlockNone
	}
	if header.Get("cf-ray") != "" || header.Get("cf-mitigated") != "" ||
		header.Get("Server") == "cloudflare" {
		return BlockCloudflare
	}

	lower := bytes.ToLower(body)
	if bytes.Contains(lower, []byte("checking your browser")) ||
		bytes.Contains(lower, []byte("cf-browser-verification")) {
		return BlockCloudflare
	}
	if bytes.Contains(lower, []byte("captcha")) {
		return BlockCaptcha
	}
	return BlockNone
}
