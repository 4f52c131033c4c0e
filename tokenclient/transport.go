package tokenclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TokenSource supplies authentication headers and can be told the current
// token was rejected.
type TokenSource interface {
	AuthHeaders(ctx context.Context) (map[string]string, error)
	ForceRefresh(ctx context.Context) error
}

// Transport adds authentication headers to every request. A 401 response
// forces one refresh and a single retry when the request body can be
// replayed.
type Transport struct {
	Source TokenSource
	Base   http.RoundTripper
}

// NewClient returns an http.Client that authenticates through source.
func NewClient(source TokenSource, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &Transport{Source: source},
		Timeout:   timeout,
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.send(req, req.Body)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if err := t.Source.ForceRefresh(req.Context()); err != nil {
		return nil, fmt.Errorf("refresh after 401: %w", err)
	}

	var body io.ReadCloser
	if req.GetBody != nil {
		body, err = req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("replay request body: %w", err)
		}
	}
	return t.send(req, body)
}

func (t *Transport) send(req *http.Request, body io.ReadCloser) (*http.Response, error) {
	headers, err := t.Source.AuthHeaders(req.Context())
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}

	out := req.Clone(req.Context())
	out.Body = body
	for k, v := range headers {
		if k == "Content-Type" && out.Header.Get(k) != "" {
			continue
		}
		out.Header.Set(k, v)
	}
	return t.base().RoundTrip(out)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
