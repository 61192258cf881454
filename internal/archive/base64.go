package archive

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
)

// Base64Result is the output of EncodeBase64.
type Base64Result struct {
	MimeType string `json:"mime_type"`
	Size     int    `json:"size"`
	Base64   string `json:"base64"`
	DataURI  string `json:"data_uri,omitempty"`
}

// EncodeBase64 encodes data, inferring a mime type from name's extension
// (defaulting to application/octet-stream), and optionally building a
// data: URI.
func EncodeBase64(name string, data []byte, asDataURI bool) Base64Result {
	mimeType := mimeTypeFor(name)
	encoded := encodeBase64String(data)
	result := Base64Result{MimeType: mimeType, Size: len(data), Base64: encoded}
	if asDataURI {
		result.DataURI = fmt.Sprintf("data:%s;base64,%s", mimeType, encoded)
	}
	return result
}

func encodeBase64String(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func mimeTypeFor(name string) string {
	mimeType := mime.TypeByExtension(extensionOf(name))
	if mimeType == "" {
		return "application/octet-stream"
	}
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return mimeType
}
