package asset_test

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"sfb/asset"
)

func mustParse(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	if err != nil {
		t.Fatalf("bad URL %q: %v", s, err)
	}
	return u
}

func TestRetrieveHTTP(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/move":
			http.Redirect(w, r, "/final.css", http.StatusMovedPermanently)
		case "/final.css":
			hits++
			w.Header().Set("Content-Type", "text/css; charset=utf-8")
			w.Write([]byte("a{}"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := asset.NewSession(asset.Options{UserAgent: "sfb-test"}, nil)

	res, err := s.Retrieve(nil, mustParse(t, srv.URL+"/move"))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if got := res.FinalURL.String(); got != srv.URL+"/final.css" {
		t.Errorf("final URL = %q, want redirect target", got)
	}
	if res.MediaType != "text/css" {
		t.Errorf("media type = %q, want text/css", res.MediaType)
	}
	if res.Charset != "utf-8" {
		t.Errorf("charset = %q, want utf-8", res.Charset)
	}
	if !bytes.Equal(res.Data, []byte("a{}")) {
		t.Errorf("data = %q", res.Data)
	}

	// second request for the same URL is served from cache
	if _, err := s.Retrieve(nil, mustParse(t, srv.URL+"/move")); err != nil {
		t.Fatalf("cached Retrieve: %v", err)
	}
	if hits != 1 {
		t.Errorf("expected 1 origin hit, got %d", hits)
	}

	// missing resources are errors
	if _, err := s.Retrieve(nil, mustParse(t, srv.URL+"/nope")); err == nil {
		t.Error("expected error for 404")
	}
}

func TestRetrieveSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	s := asset.NewSession(asset.Options{MaxAssetSize: 1024}, nil)
	_, err := s.Retrieve(nil, mustParse(t, srv.URL+"/big"))
	if !errors.Is(err, asset.ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestRetrieveFile(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "style.css")
	if err := os.WriteFile(fname, []byte("b{}"), 0644); err != nil {
		t.Fatal(err)
	}

	s := asset.NewSession(asset.Options{}, nil)
	res, err := s.Retrieve(nil, &url.URL{Scheme: "file", Path: fname})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !bytes.Equal(res.Data, []byte("b{}")) {
		t.Errorf("data = %q", res.Data)
	}

	if _, err := s.Retrieve(nil, &url.URL{Scheme: "file", Path: filepath.Join(dir, "missing.css")}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRetrieveDataURL(t *testing.T) {
	s := asset.NewSession(asset.Options{}, nil)
	res, err := s.Retrieve(nil, mustParse(t, "data:text/plain;base64,aGVsbG8="))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if string(res.Data) != "hello" {
		t.Errorf("data = %q, want hello", res.Data)
	}
	if res.MediaType != "text/plain" {
		t.Errorf("media type = %q", res.MediaType)
	}
}

func TestRetrieveUnsupportedScheme(t *testing.T) {
	s := asset.NewSession(asset.Options{}, nil)
	_, err := s.Retrieve(nil, mustParse(t, "ftp://example.com/file"))
	if !errors.Is(err, asset.ErrUnsupportedScheme) {
		t.Errorf("expected ErrUnsupportedScheme, got %v", err)
	}
}

func TestDecodeText(t *testing.T) {
	// koi8-r for "да"
	koi := []byte{0xc4, 0xc1}
	if got := asset.DecodeText(koi, "koi8-r"); got != "да" {
		t.Errorf("DecodeText koi8-r = %q", got)
	}
	if got := asset.DecodeText([]byte("plain"), ""); got != "plain" {
		t.Errorf("DecodeText passthrough = %q", got)
	}
	if got := asset.DecodeText([]byte("plain"), "no-such-charset"); got != "plain" {
		t.Errorf("DecodeText unknown charset = %q", got)
	}
}
