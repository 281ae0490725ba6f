package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const maxRedirects = 10

type SessionConfig struct {
	Headers map[string]string
	// Timeout bounds every single request; expiry is a transport failure.
	Timeout time.Duration
	// Parallelism caps concurrent requests per host across clones.
	Parallelism int
	// ErrorPaths are path fragments of the storefront's captcha and error
	// pages. Redirects into them are refused.
	ErrorPaths []string
}

// NewSession creates a Session whose requests are bound to ctx. A Session is
// meant to live for one comparison and be shared by its concurrent lookups.
func NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	options := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
		// every status reaches OnResponse; Fetch decides what counts as content
		colly.ParseHTTPErrorResponse(),
	}
	if ua := cfg.Headers["User-Agent"]; ua != "" {
		options = append(options, colly.UserAgent(ua))
	}

	s := &Session{
		colly:   colly.NewCollector(options...),
		headers: cfg.Headers,
	}

	// somehow cookies are causing weird concurrency issues where the wrong response body gets used
	s.colly.DisableCookies()

	if cfg.Timeout > 0 {
		s.colly.SetRequestTimeout(cfg.Timeout)
	}

	if cfg.Parallelism > 0 {
		if err := s.colly.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			Parallelism: cfg.Parallelism,
		}); err != nil {
			return nil, fmt.Errorf("set limit rule: %w", err)
		}
	}

	// storefronts redirect to a captcha or generic error page instead of answering with an error status
	errorPaths := cfg.ErrorPaths
	s.colly.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		for _, p := range errorPaths {
			if p != "" && strings.Contains(req.URL.Path, p) {
				return fmt.Errorf("not following redirect (implies error) %q: %w", req.URL.String(), ErrRedirectToErrorPage)
			}
		}
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	})

	return s, nil
}

// Fetch issues a single GET with the session's header set. Non-2xx answers
// yield (nil, nil); failures to complete the request wrap ErrTransport. There
// are no retries here.
func (s *Session) Fetch(url string) ([]byte, error) {
	c := s.colly.Clone()

	var (
		body   []byte
		status int
	)

	c.OnRequest(func(r *colly.Request) {
		for k, v := range s.headers {
			r.Headers.Set(k, v)
		}
	})

	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		if status >= 200 && status <= 299 {
			body = r.Body
		}
	})

	err := c.Visit(url)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrTransport, url, err)
	}
	if status < 200 || status > 299 {
		return nil, nil
	}
	return body, nil
}
