package apisvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/trezcool/cems/core"
	"github.com/trezcool/cems/core/auth"
)

const refreshPath = "/auth/token/refresh/"

// RequestOptions describe one API call.
type RequestOptions struct {
	Method string
	Query  url.Values
	// Body is sent as JSON, unless it is a *Multipart.
	Body         interface{}
	AccessToken  string
	RefreshToken string
	// OnRefreshed receives the pair obtained by a silent refresh, before the retry.
	OnRefreshed func(auth.CredentialPair)
}

// Authorized fills the token fields from authz.
func (o RequestOptions) Authorized(authz auth.Authorization) RequestOptions {
	o.AccessToken = authz.Pair.Access
	o.RefreshToken = authz.Pair.Refresh
	o.OnRefreshed = authz.OnRefreshed
	return o
}

// Multipart is a form payload sent as is.
type Multipart struct {
	contentType string
	body        []byte
}

// NewMultipart encodes fields and files (field name -> file name -> content) as multipart/form-data.
func NewMultipart(fields map[string]string, files map[string]map[string][]byte) (*Multipart, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, errors.Wrap(err, "multipart.WriteField()")
		}
	}
	for name, named := range files {
		for filename, content := range named {
			part, err := w.CreateFormFile(name, filename)
			if err != nil {
				return nil, errors.Wrap(err, "multipart.CreateFormFile()")
			}
			if _, err = part.Write(content); err != nil {
				return nil, errors.Wrap(err, "multipart.Write()")
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "multipart.Close()")
	}
	return &Multipart{contentType: w.FormDataContentType(), body: buf.Bytes()}, nil
}

func (m *Multipart) ContentType() string { return m.contentType }

// Client talks to the CEMS REST API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  core.Logger

	refreshes singleflight.Group
}

// NewClient builds a client for conf's API origin and path prefix. A nil httpClient gets one timing out after api.timeout.
func NewClient(conf *core.Config, httpClient *http.Client, logger core.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: conf.API.Timeout}
	}
	return &Client{
		baseURL: conf.APIOrigin() + normalizePrefix(conf.API.PathPrefix),
		http:    httpClient,
		logger:  logger,
	}
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return strings.TrimRight(prefix, "/")
}

// BaseURL is origin + path prefix, without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) url(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

type response struct {
	status      int
	contentType string
	body        []byte
}

func (r response) ok() bool { return r.status >= 200 && r.status < 300 }

// Send performs a request and decodes a successful JSON body into out (when non-nil).
// A 401 with a refresh token triggers one silent refresh and one retry.
// Every failure is a *core.APIError.
func (c *Client) Send(ctx context.Context, path string, opts RequestOptions, out interface{}) error {
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}
	body, contentType, err := encodeBody(opts.Body)
	if err != nil {
		return err
	}

	res, err := c.do(ctx, path, opts, body, contentType, opts.AccessToken)
	if err != nil {
		return err
	}

	if res.status == http.StatusUnauthorized && opts.RefreshToken != "" {
		pair, rErr := c.refresh(ctx, opts.RefreshToken)
		if rErr != nil {
			c.logger.Debug("apisvc: silent refresh failed", rErr)
			return toAPIError(res)
		}
		if opts.OnRefreshed != nil {
			opts.OnRefreshed(pair)
		}
		if res, err = c.do(ctx, path, opts, body, contentType, pair.Access); err != nil {
			return err
		}
	}

	if !res.ok() {
		return toAPIError(res)
	}
	return decodeSuccess(res, out)
}

func encodeBody(body interface{}) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case *Multipart:
		return b.body, b.contentType, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, "", errors.Wrap(err, "json.Marshal()")
	}
	return data, "application/json", nil
}

func (c *Client) do(ctx context.Context, path string, opts RequestOptions, body []byte, contentType, access string) (response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, opts.Method, c.url(path, opts.Query), reader)
	if err != nil {
		return response{}, errors.Wrap(err, "http.NewRequest()")
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, c.unreachable(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, c.unreachable(err)
	}
	return response{status: resp.StatusCode, contentType: resp.Header.Get("Content-Type"), body: data}, nil
}

func (c *Client) unreachable(cause error) error {
	return &core.APIError{
		Message: fmt.Sprintf("Network error. Unable to reach API at %s. Check that the server is running and accessible from this origin.", c.baseURL),
		Status:  0,
		Details: cause,
	}
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// refresh exchanges a refresh token for a new pair. Concurrent refreshes of
// the same token share one call, which outlives any single caller's context.
func (c *Client) refresh(ctx context.Context, refreshToken string) (auth.CredentialPair, error) {
	ch := c.refreshes.DoChan(refreshToken, func() (interface{}, error) {
		sharedCtx, cancel := c.detachedContext()
		defer cancel()

		var res refreshResponse
		opts := RequestOptions{Method: http.MethodPost, Body: map[string]string{"refresh": refreshToken}}
		if err := c.Send(sharedCtx, refreshPath, opts, &res); err != nil {
			return nil, err
		}
		if res.Access == "" {
			return nil, &core.APIError{Message: "Invalid response from server", Status: http.StatusOK}
		}
		pair := auth.CredentialPair{Access: res.Access, Refresh: res.Refresh}
		if pair.Refresh == "" {
			pair.Refresh = refreshToken
		}
		return pair, nil
	})

	select {
	case <-ctx.Done():
		return auth.CredentialPair{}, c.unreachable(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return auth.CredentialPair{}, res.Err
		}
		return res.Val.(auth.CredentialPair), nil
	}
}

// detachedContext bounds a shared call by the client timeout only.
func (c *Client) detachedContext() (context.Context, context.CancelFunc) {
	if c.http.Timeout > 0 {
		return context.WithTimeout(context.Background(), c.http.Timeout)
	}
	return context.WithCancel(context.Background())
}

// RefreshCredentials exchanges a refresh token for a new pair.
func (c *Client) RefreshCredentials(ctx context.Context, refreshToken string) (auth.CredentialPair, error) {
	return c.refresh(ctx, refreshToken)
}
