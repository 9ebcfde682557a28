package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-postwork/core"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookClient posts dispatch payloads to worker webhooks.
type WebhookClient struct {
	Client               HTTPDoer
	UserAgent            string
	Timeout              time.Duration
	MaxResponseBodyBytes int64
	DefaultHeaders       map[string]string
}

type ClientOption func(*WebhookClient)

// WithHTTPClient replaces the TLS-configured client built from DispatchConfig.
func WithHTTPClient(client HTTPDoer) ClientOption {
	return func(c *WebhookClient) {
		if client != nil {
			c.Client = client
		}
	}
}

func WithDefaultHeader(key string, value string) ClientOption {
	return func(c *WebhookClient) {
		key = strings.TrimSpace(key)
		if key == "" {
			return
		}
		c.DefaultHeaders[key] = strings.TrimSpace(value)
	}
}

func NewWebhookClient(cfg core.DispatchConfig, opts ...ClientOption) *WebhookClient {
	cfg = cfg.WithDefaults()
	client := &WebhookClient{
		Client:               NewHTTPClient(cfg),
		UserAgent:            cfg.UserAgent,
		Timeout:              cfg.Timeout,
		MaxResponseBodyBytes: cfg.MaxResponseBodyBytes,
		DefaultHeaders:       map[string]string{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// NewHTTPClient builds an http.Client that verifies TLS certificates unless
// cfg.InsecureSkipVerify is set.
func NewHTTPClient(cfg core.DispatchConfig) *http.Client {
	cfg = cfg.WithDefaults()
	base, ok := http.DefaultTransport.(*http.Transport)
	var transport *http.Transport
	if ok {
		transport = base.Clone()
	} else {
		transport = &http.Transport{Proxy: http.ProxyFromEnvironment}
	}
	transport.TLSClientConfig = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}

// SenderFactory adapts NewWebhookClient to core.SenderFactory.
func SenderFactory(opts ...ClientOption) core.SenderFactory {
	return func(cfg core.DispatchConfig) core.WebhookSender {
		return NewWebhookClient(cfg, opts...)
	}
}

// Send POSTs the request body. Any received status is returned as a response;
// only failures to obtain one are errors. Bodies beyond the limit are cut.
func (c *WebhookClient) Send(ctx context.Context, req core.WebhookRequest) (core.WebhookResponse, error) {
	if c == nil || c.Client == nil {
		return core.WebhookResponse{}, clientNotConfiguredError()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	target := strings.TrimSpace(req.URL)
	parsedURL, err := url.Parse(target)
	if err != nil {
		return core.WebhookResponse{}, invalidURLError("transport: invalid webhook url", target, err)
	}
	if !parsedURL.IsAbs() || parsedURL.Host == "" {
		return core.WebhookResponse{}, invalidURLError("transport: webhook url must be absolute", target, nil)
	}

	requestCtx := ctx
	cancel := func() {}
	if c.Timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, c.Timeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, parsedURL.String(), bytes.NewReader(req.Body))
	if err != nil {
		return core.WebhookResponse{}, invalidURLError("transport: create webhook request", parsedURL.String(), err)
	}
	for key, value := range c.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}
	for key, values := range req.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Del(key)
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if c.UserAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.UserAgent)
	}

	httpRes, err := c.Client.Do(httpReq)
	if err != nil {
		return core.WebhookResponse{}, deliveryError("transport: execute webhook request", parsedURL.String(), 0, err)
	}
	defer httpRes.Body.Close()

	limit := c.MaxResponseBodyBytes
	if limit <= 0 {
		limit = core.DefaultMaxResponseBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(httpRes.Body, limit))
	if err != nil {
		return core.WebhookResponse{}, deliveryError("transport: read webhook response body", parsedURL.String(), httpRes.StatusCode, err)
	}

	return core.WebhookResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    httpRes.Header.Clone(),
		Body:       body,
	}, nil
}

var _ core.WebhookSender = (*WebhookClient)(nil)
