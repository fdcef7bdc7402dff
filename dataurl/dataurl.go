// Package dataurl builds and parses RFC 2397 data URLs used to embed
// resource bytes directly into documents and stylesheets.
package dataurl

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/h2non/filetype"
)

// EmptyImage is a transparent 1x1 PNG used as a placeholder when image
// embedding is turned off.
const EmptyImage = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

// New creates a base64 data URL from resource bytes. Empty mediaType is
// detected from content, falling back to the source URL file extension.
// The charset parameter is kept only when it actually changes
// interpretation of a text payload.
func New(mediaType, charset string, data []byte, sourceURL *url.URL) *url.URL {
	mt := mediaType
	if mt == "" {
		mt = detectMediaType(data, sourceURL)
	}

	var params string
	if isTextMediaType(mt) && charset != "" &&
		!strings.EqualFold(charset, "US-ASCII") && !strings.EqualFold(charset, "UTF-8") {
		params = ";charset=" + charset
	}

	return &url.URL{
		Scheme: "data",
		Opaque: mt + params + ";base64," + base64.StdEncoding.EncodeToString(data),
	}
}

// Parse splits a data URL into media type, charset and decoded bytes.
// Both base64 and percent-encoded payload forms are accepted.
func Parse(u *url.URL) (mediaType, charset string, data []byte, err error) {
	if u.Scheme != "data" {
		return "", "", nil, fmt.Errorf("not a data URL: %s", u.Scheme)
	}

	meta, payload, found := strings.Cut(u.Opaque, ",")
	if !found {
		return "", "", nil, fmt.Errorf("malformed data URL: no payload separator")
	}

	isBase64 := false
	for i, part := range strings.Split(meta, ";") {
		switch {
		case i == 0:
			mediaType = part
		case part == "base64":
			isBase64 = true
		case strings.HasPrefix(part, "charset="):
			charset = strings.TrimPrefix(part, "charset=")
		}
	}
	if mediaType == "" {
		mediaType = "text/plain"
	}

	if isBase64 {
		if data, err = base64.StdEncoding.DecodeString(payload); err != nil {
			return "", "", nil, fmt.Errorf("malformed base64 data URL payload: %w", err)
		}
	} else {
		var s string
		if s, err = url.PathUnescape(payload); err != nil {
			return "", "", nil, fmt.Errorf("malformed data URL payload: %w", err)
		}
		data = []byte(s)
	}
	return mediaType, charset, data, nil
}

func detectMediaType(data []byte, sourceURL *url.URL) string {
	if t, err := filetype.Match(data); err == nil && t != filetype.Unknown {
		return t.MIME.Value
	}
	if sourceURL != nil {
		if ext := path.Ext(sourceURL.Path); ext != "" {
			if mt := mime.TypeByExtension(ext); mt != "" {
				// strip optional parameters added by TypeByExtension
				if base, _, err := mime.ParseMediaType(mt); err == nil {
					return base
				}
				return mt
			}
		}
	}
	if mt, _, err := mime.ParseMediaType(http.DetectContentType(data)); err == nil {
		return mt
	}
	return "application/octet-stream"
}

func isTextMediaType(mt string) bool {
	return strings.HasPrefix(mt, "text/") ||
		strings.HasSuffix(mt, "+xml") ||
		mt == "application/json" || mt == "application/javascript"
}
