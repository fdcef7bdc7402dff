// Package asset retrieves external resources referenced by processed
// documents - over HTTP(S), from local files, or out of data URLs.
package asset

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/h2non/filetype"
	"go.uber.org/zap"

	"sfb/dataurl"
)

var (
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	ErrTooLarge          = errors.New("resource exceeds size limit")
)

// Resource is a successfully retrieved external resource. FinalURL is the
// URL that actually served the content (after redirects) and may differ
// from the requested one.
type Resource struct {
	Data      []byte
	FinalURL  *url.URL
	MediaType string
	Charset   string
}

// Retriever resolves an absolute URL to resource content. base identifies
// the document on whose behalf the request is made.
type Retriever interface {
	Retrieve(base, target *url.URL) (*Resource, error)
}

// Options control Session behavior.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MaxAssetSize int64 // 0 - unlimited
}

// Session is a caching Retriever. Repeated requests for the same URL within
// one session are served from memory, so a stylesheet referencing one image
// many times fetches it once.
type Session struct {
	log    *zap.Logger
	client *http.Client
	opts   Options
	cache  map[string]*Resource
}

// NewSession creates a retrieval session.
func NewSession(opts Options, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		log:    log.Named("retrieve"),
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		cache:  make(map[string]*Resource),
	}
}

// Retrieve implements Retriever.
func (s *Session) Retrieve(base, target *url.URL) (*Resource, error) {
	if target == nil {
		return nil, errors.New("no target URL")
	}

	key := target.String()
	if res, ok := s.cache[key]; ok {
		s.log.Debug("Resource cache hit", zap.String("url", key))
		return res, nil
	}

	var (
		res *Resource
		err error
	)
	switch target.Scheme {
	case "data":
		res, err = retrieveDataURL(target)
	case "file":
		res, err = s.retrieveFile(target)
	case "http", "https":
		res, err = s.retrieveHTTP(base, target)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedScheme, target.Scheme)
	}
	if err != nil {
		s.log.Warn("Unable to retrieve resource", zap.String("url", key), zap.Error(err))
		return nil, err
	}

	s.log.Debug("Retrieved resource",
		zap.String("url", key),
		zap.String("final", res.FinalURL.String()),
		zap.String("media", res.MediaType),
		zap.Int("bytes", len(res.Data)))

	s.cache[key] = res
	return res, nil
}

func retrieveDataURL(target *url.URL) (*Resource, error) {
	mediaType, charset, data, err := dataurl.Parse(target)
	if err != nil {
		return nil, err
	}
	return &Resource{Data: data, FinalURL: target, MediaType: mediaType, Charset: charset}, nil
}

func (s *Session) retrieveFile(target *url.URL) (*Resource, error) {
	data, err := os.ReadFile(target.Path)
	if err != nil {
		return nil, err
	}
	if s.opts.MaxAssetSize > 0 && int64(len(data)) > s.opts.MaxAssetSize {
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrTooLarge, target.Path, len(data))
	}
	mediaType, charset := sniffMediaType(data, "")
	return &Resource{Data: data, FinalURL: target, MediaType: mediaType, Charset: charset}, nil
}

func (s *Session) retrieveHTTP(base, target *url.URL) (*Resource, error) {
	req, err := http.NewRequest(http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	if s.opts.UserAgent != "" {
		req.Header.Set("User-Agent", s.opts.UserAgent)
	}
	if base != nil && (base.Scheme == "http" || base.Scheme == "https") {
		req.Header.Set("Referer", base.String())
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("server returned %s for %s", resp.Status, target)
	}

	body := io.Reader(resp.Body)
	if s.opts.MaxAssetSize > 0 {
		body = io.LimitReader(resp.Body, s.opts.MaxAssetSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if s.opts.MaxAssetSize > 0 && int64(len(data)) > s.opts.MaxAssetSize {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, target)
	}

	mediaType, charset := sniffMediaType(data, resp.Header.Get("Content-Type"))

	// resp.Request points at the last request in the redirect chain
	return &Resource{Data: data, FinalURL: resp.Request.URL, MediaType: mediaType, Charset: charset}, nil
}

// sniffMediaType determines media type and charset, preferring the declared
// Content-Type and falling back to content-based detection.
func sniffMediaType(data []byte, contentType string) (string, string) {
	if contentType != "" {
		if mt, params, err := mime.ParseMediaType(contentType); err == nil {
			return mt, params["charset"]
		}
	}
	if t, err := filetype.Match(data); err == nil && t != filetype.Unknown {
		return t.MIME.Value, ""
	}
	if mt, params, err := mime.ParseMediaType(http.DetectContentType(data)); err == nil {
		return mt, params["charset"]
	}
	return "application/octet-stream", ""
}
