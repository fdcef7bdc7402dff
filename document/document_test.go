package document_test

import (
	"fmt"
	"net/url"
	"strings"
	"testing"

	"sfb/asset"
	"sfb/css"
	"sfb/document"
)

type fakeRetriever struct {
	resources map[string]*asset.Resource
}

func (f *fakeRetriever) Retrieve(_, target *url.URL) (*asset.Resource, error) {
	res, ok := f.resources[target.String()]
	if !ok {
		return nil, fmt.Errorf("no such resource: %s", target)
	}
	if res.FinalURL == nil {
		res.FinalURL = target
	}
	return res, nil
}

func mustParse(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	if err != nil {
		t.Fatalf("bad URL %q: %v", s, err)
	}
	return u
}

func TestBundleInlinesLinkedStylesheet(t *testing.T) {
	r := &fakeRetriever{resources: map[string]*asset.Resource{
		"http://site.example/style.css": {
			Data:      []byte("a{color:red}"),
			MediaType: "text/css",
		},
	}}
	b := document.NewBundler(r, css.Options{}, nil)

	in := `<html><head><link rel="stylesheet" href="style.css"></head><body></body></html>`
	out, err := b.Bundle(mustParse(t, "http://site.example/"), []byte(in))
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	got := string(out)
	if !strings.Contains(got, "<style>a{color:red}</style>") {
		t.Errorf("linked stylesheet not inlined:\n%s", got)
	}
	if strings.Contains(got, "<link") {
		t.Errorf("link element survived:\n%s", got)
	}
}

func TestBundleKeepsUnretrievableLink(t *testing.T) {
	b := document.NewBundler(&fakeRetriever{resources: map[string]*asset.Resource{}}, css.Options{}, nil)

	in := `<html><head><link rel="stylesheet" href="gone.css"></head><body></body></html>`
	out, err := b.Bundle(mustParse(t, "http://site.example/"), []byte(in))
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	if !strings.Contains(string(out), `<link rel="stylesheet" href="gone.css"`) {
		t.Errorf("unretrievable link was not preserved:\n%s", out)
	}
}

func TestBundleIgnoresNonStylesheetLink(t *testing.T) {
	b := document.NewBundler(&fakeRetriever{resources: map[string]*asset.Resource{}}, css.Options{}, nil)

	in := `<html><head><link rel="icon" href="fav.ico"></head><body></body></html>`
	out, err := b.Bundle(mustParse(t, "http://site.example/"), []byte(in))
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	if !strings.Contains(string(out), `<link rel="icon"`) {
		t.Errorf("icon link was touched:\n%s", out)
	}
}

func TestBundleEmbedsStyleElement(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	r := &fakeRetriever{resources: map[string]*asset.Resource{
		"http://site.example/pic.png": {
			Data:      png,
			MediaType: "image/png",
		},
	}}
	b := document.NewBundler(r, css.Options{}, nil)

	in := `<html><head><style>div{background:url(pic.png)}</style></head><body></body></html>`
	out, err := b.Bundle(mustParse(t, "http://site.example/"), []byte(in))
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	if !strings.Contains(string(out), `url("data:image/png;base64,`) {
		t.Errorf("style element reference not embedded:\n%s", out)
	}
}

func TestBundleRewritesStyleAttribute(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	r := &fakeRetriever{resources: map[string]*asset.Resource{
		"http://site.example/bg.png": {
			Data:      png,
			MediaType: "image/png",
		},
	}}
	b := document.NewBundler(r, css.Options{}, nil)

	in := `<html><body><div style="background:url(bg.png)"></div></body></html>`
	out, err := b.Bundle(mustParse(t, "http://site.example/"), []byte(in))
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	got := string(out)
	if !strings.Contains(got, "data:image/png;base64,") {
		t.Errorf("style attribute not rewritten:\n%s", got)
	}
	if strings.Contains(got, "bg.png") {
		t.Errorf("original reference survived:\n%s", got)
	}
}

func TestBundleLinkedStylesheetResolvesAgainstFinalURL(t *testing.T) {
	// stylesheet served from a different location than requested; relative
	// references inside it resolve against the serving URL
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	r := &fakeRetriever{resources: map[string]*asset.Resource{
		"http://site.example/style.css": {
			Data:      []byte("div{background:url(pic.png)}"),
			MediaType: "text/css",
			FinalURL:  mustParse(t, "http://cdn.example/assets/style.css"),
		},
		"http://cdn.example/assets/pic.png": {
			Data:      png,
			MediaType: "image/png",
		},
	}}
	b := document.NewBundler(r, css.Options{}, nil)

	in := `<html><head><link rel="stylesheet" href="style.css"></head><body></body></html>`
	out, err := b.Bundle(mustParse(t, "http://site.example/"), []byte(in))
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	if !strings.Contains(string(out), `url("data:image/png;base64,`) {
		t.Errorf("relative reference did not resolve against final URL:\n%s", out)
	}
}
