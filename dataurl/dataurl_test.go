package dataurl_test

import (
	"bytes"
	"net/url"
	"strings"
	"testing"

	"sfb/dataurl"
)

func TestNewRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		mediaType string
		charset   string
		data      []byte
	}{
		{"png", "image/png", "", []byte{0x89, 0x50, 0x4e, 0x47}},
		{"css", "text/css", "", []byte("body{margin:0}")},
		{"css koi8-r", "text/css", "koi8-r", []byte("p{}")},
		{"empty", "application/octet-stream", "", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			u := dataurl.New(tc.mediaType, tc.charset, tc.data, nil)
			if u.Scheme != "data" {
				t.Fatalf("scheme = %q, want data", u.Scheme)
			}

			mt, charset, data, err := dataurl.Parse(u)
			if err != nil {
				t.Fatalf("Parse(%q): %v", u, err)
			}
			if mt != tc.mediaType {
				t.Errorf("media type = %q, want %q", mt, tc.mediaType)
			}
			if charset != tc.charset {
				t.Errorf("charset = %q, want %q", charset, tc.charset)
			}
			if !bytes.Equal(data, tc.data) {
				t.Errorf("data = %v, want %v", data, tc.data)
			}
		})
	}
}

func TestNewCharsetOmitted(t *testing.T) {
	// UTF-8 and US-ASCII change nothing for a decoder and are dropped
	for _, cs := range []string{"", "UTF-8", "utf-8", "US-ASCII"} {
		u := dataurl.New("text/css", cs, []byte("a{}"), nil)
		if strings.Contains(u.String(), "charset") {
			t.Errorf("charset %q should be omitted, got %q", cs, u)
		}
	}
	// binary payloads never carry charset
	u := dataurl.New("image/png", "koi8-r", []byte{1}, nil)
	if strings.Contains(u.String(), "charset") {
		t.Errorf("binary payload should not carry charset: %q", u)
	}
}

func TestNewDetectsMediaType(t *testing.T) {
	// PNG magic
	png := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	u := dataurl.New("", "", png, nil)
	if !strings.HasPrefix(u.Opaque, "image/png;") {
		t.Errorf("expected image/png detection, got %q", u)
	}

	// unknown content falls back to the source URL extension
	src, _ := url.Parse("https://example.com/style.css")
	u = dataurl.New("", "", []byte("a{}"), src)
	if !strings.HasPrefix(u.Opaque, "text/css;") {
		t.Errorf("expected text/css from extension, got %q", u)
	}
}

func TestFragmentSurvivesString(t *testing.T) {
	u := dataurl.New("image/svg+xml", "", []byte("<svg/>"), nil)
	u.Fragment = "icon"
	if !strings.HasSuffix(u.String(), "#icon") {
		t.Errorf("fragment lost: %q", u)
	}
}

func TestEmptyImageParses(t *testing.T) {
	u, err := url.Parse(dataurl.EmptyImage)
	if err != nil {
		t.Fatalf("EmptyImage does not parse: %v", err)
	}
	mt, _, data, err := dataurl.Parse(u)
	if err != nil {
		t.Fatalf("EmptyImage payload: %v", err)
	}
	if mt != "image/png" {
		t.Errorf("media type = %q, want image/png", mt)
	}
	if len(data) == 0 {
		t.Error("empty payload")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"data:image/png;base64", "data:;base64,!!!"} {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if _, _, _, err := dataurl.Parse(u); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
	u, _ := url.Parse("https://example.com/")
	if _, _, _, err := dataurl.Parse(u); err == nil {
		t.Error("expected error for non-data URL")
	}
}
