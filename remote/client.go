package remote

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

	"fleetconsole/models"
)

// TokenSource supplies the bearer credential for outgoing requests.
// Declared here so the client does not depend on the session store.
type TokenSource interface {
	Token() string
}

// Client talks to the fleet command server's REST API. It classifies every
// outcome but never reacts to it: credential invalidation on 401 is the
// caller's job.
//
// The client deliberately has no request timeout. The server's own response,
// including its rate-limit signal, is the only liveness contract; callers
// bound individual calls with a context if they need to.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
}

// UninstallOrigin tags uninstall requests with where they came from.
const UninstallOrigin = "console"

func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    &http.Client{},
	}
}

// LoginResult is the server's answer to a successful login.
type LoginResult struct {
	Status string `json:"status"`
	Token  string `json:"token"`
	Role   string `json:"type"`
}

// Login exchanges operator credentials for a bearer token and role tag.
// The caller decides whether and where to store them.
func (c *Client) Login(ctx context.Context, user, pass string) (LoginResult, error) {
	query := url.Values{}
	query.Set("user", user)
	query.Set("pass", pass)

	body, err := c.get(ctx, "/api/login", query)
	if err != nil {
		return LoginResult{}, err
	}

	var result LoginResult
	if err := json.Unmarshal(body, &result); err != nil {
		return LoginResult{}, fmt.Errorf("decode login response: %w", err)
	}
	if result.Token == "" {
		return LoginResult{}, &models.CommandError{Kind: models.ErrRemote, Message: "login response carried no token"}
	}
	return result, nil
}

// Version returns the server's version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/api/version", nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// ListAgents returns the current snapshot of connected agents. The server
// has no push channel for this; the roster poller calls it on an interval.
func (c *Client) ListAgents(ctx context.Context) ([]models.Agent, error) {
	body, err := c.get(ctx, "/api/list", nil)
	if err != nil {
		return nil, err
	}

	var agents []models.Agent
	if err := json.Unmarshal(body, &agents); err != nil {
		return nil, fmt.Errorf("decode agent list: %w", err)
	}
	return agents, nil
}

// Send delivers one command to one target and classifies the outcome.
// targetID is either a concrete agent id or models.WildcardTarget, which is
// passed straight through; the server fans the wildcard out itself.
func (c *Client) Send(ctx context.Context, cmd models.Command, targetID string) (string, error) {
	if targetID == "" {
		return "", &models.CommandError{Kind: models.ErrInvalidInput, Message: "empty target id"}
	}
	if err := cmd.Validate(); err != nil {
		return "", err
	}

	if cmd.IsUpload() {
		return c.sendUpload(ctx, cmd, targetID)
	}

	path, query := commandEndpoint(cmd, targetID)
	body, err := c.get(ctx, path, query)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// commandEndpoint maps a command variant onto the server's URL scheme.
// Wallpaper keeps its historical /api/send path; the parameterless effects
// all follow the /api/<kind> convention.
func commandEndpoint(cmd models.Command, targetID string) (string, url.Values) {
	query := url.Values{}
	query.Set("id", targetID)

	switch cmd.Kind {
	case models.CmdWallpaper:
		query.Set("url", cmd.URL)
		return "/api/send", query
	case models.CmdMarquee, models.CmdParticles:
		query.Set("url", cmd.URL)
		return "/api/" + string(cmd.Kind), query
	case models.CmdTextScreen:
		query.Set("text", cmd.Text)
		return "/api/textscreen", query
	case models.CmdKeyCombo:
		query.Set("combo", cmd.Text)
		return "/api/key", query
	case models.CmdUninstall:
		origin := cmd.Text
		if origin == "" {
			origin = UninstallOrigin
		}
		query.Set("from", origin)
		return "/api/uninstall", query
	default:
		return "/api/" + string(cmd.Kind), query
	}
}

// sendUpload transfers the command's attachment as a multipart form. The
// outcome classification is identical to the URL-based path.
func (c *Client) sendUpload(ctx context.Context, cmd models.Command, targetID string) (string, error) {
	query := url.Values{}
	query.Set("id", targetID)
	switch cmd.Kind {
	case models.CmdMarquee, models.CmdParticles:
		query.Set("type", string(cmd.Kind))
	}

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	name := cmd.FileName
	if name == "" {
		name = "upload.bin"
	}
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(cmd.File); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}

	endpoint := c.baseURL + "/api/upload?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &form)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	return c.do(req)
}

// do executes a request with the bearer credential attached and classifies
// the response: 429 is the server's per-target throttle, 401 means the
// session credential is dead, any other non-2xx is an opaque remote failure.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &models.CommandError{Kind: models.ErrTransport, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &models.CommandError{Kind: models.ErrTransport, Message: err.Error()}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &models.CommandError{Kind: models.ErrRateLimited, Message: "rate limit: please wait 10s"}
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &models.CommandError{Kind: models.ErrUnauthorized, Message: "credential rejected"}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &models.CommandError{Kind: models.ErrRemote, Message: strings.TrimSpace(string(body))}
	}
	return body, nil
}
