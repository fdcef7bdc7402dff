package asset

import (
	"golang.org/x/text/encoding/htmlindex"
)

// DecodeText converts resource bytes to a string honoring the declared
// charset. Unknown or missing charsets fall back to treating bytes as UTF-8.
func DecodeText(data []byte, charset string) string {
	if charset == "" {
		return string(data)
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return string(data)
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}
