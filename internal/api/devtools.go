package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"island-tracker/internal/config"
	"island-tracker/internal/constants"

	"github.com/valyala/fasthttp"
)

// ErrNoRemoteBrowser is returned when no remote DevTools endpoint is configured.
var ErrNoRemoteBrowser = errors.New("no remote browser configured")

// DevToolsClient talks to the HTTP side of a remote Chrome DevTools endpoint.
type DevToolsClient struct {
	baseURL string
	client  *fasthttp.Client
}

type VersionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	V8Version            string `json:"V8-Version"`
	WebKitVersion        string `json:"WebKit-Version"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

func NewDevToolsClient(cfg *config.Config) *DevToolsClient {
	return &DevToolsClient{
		baseURL: strings.TrimRight(cfg.ChromeRemoteURL, "/"),
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         constants.DevToolsTimeout,
			WriteTimeout:        constants.DevToolsTimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

func (c *DevToolsClient) Enabled() bool {
	return c.baseURL != ""
}

func (c *DevToolsClient) Version(ctx context.Context) (*VersionInfo, error) {
	if !c.Enabled() {
		return nil, ErrNoRemoteBrowser
	}
	return doRequest[VersionInfo](ctx, c, httpBase(c.baseURL)+"/json/version")
}

// WebSocketURL resolves the browser-level debugger URL. A configured ws:// or
// wss:// endpoint is used as is.
func (c *DevToolsClient) WebSocketURL(ctx context.Context) (string, error) {
	if !c.Enabled() {
		return "", ErrNoRemoteBrowser
	}
	if strings.HasPrefix(c.baseURL, "ws://") || strings.HasPrefix(c.baseURL, "wss://") {
		return c.baseURL, nil
	}
	info, err := c.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to query devtools version: %w", err)
	}
	if info.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("devtools endpoint %s returned no websocket url", c.baseURL)
	}
	return info.WebSocketDebuggerURL, nil
}

func httpBase(u string) string {
	switch {
	case strings.HasPrefix(u, "ws://"):
		return "http://" + strings.TrimPrefix(u, "ws://")
	case strings.HasPrefix(u, "wss://"):
		return "https://" + strings.TrimPrefix(u, "wss://")
	}
	return u
}

func doRequest[T any](ctx context.Context, client *DevToolsClient, url string) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("devtools error: %d", resp.StatusCode())
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
