package wda

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultURL is where a locally forwarded WebDriverAgent listens.
const DefaultURL = "http://localhost:8100"

// Client is an HTTP client for WebDriverAgent.
type Client struct {
	baseURL    string
	sessionID  string
	httpClient *http.Client
}

// NewClient creates a new WDA client for the given base URL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Error is an error payload returned by WDA.
type Error struct {
	Code    string // W3C error code, e.g. "no such alert"
	Message string
}

func (e *Error) Error() string {
	return "WDA error: " + e.Message
}

// IsNoSuchAlert reports whether err means no alert is visible.
func IsNoSuchAlert(err error) bool {
	var wdaErr *Error
	if !errors.As(err, &wdaErr) {
		return false
	}
	return wdaErr.Code == "no such alert" || strings.Contains(strings.ToLower(wdaErr.Message), "no alert")
}

// Session management

// CreateSession creates a new WDA session and launches bundleID.
func (c *Client) CreateSession(ctx context.Context, bundleID string) error {
	caps := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": map[string]interface{}{
				"bundleId": bundleID,
			},
		},
	}

	resp, err := c.post(ctx, "/session", caps)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	// Extract session ID
	if value, ok := resp["value"].(map[string]interface{}); ok {
		if sessionID, ok := value["sessionId"].(string); ok {
			c.sessionID = sessionID
		}
	}
	if c.sessionID == "" {
		if sessionID, ok := resp["sessionId"].(string); ok {
			c.sessionID = sessionID
		}
	}
	if c.sessionID == "" {
		return fmt.Errorf("failed to create session: no session id in response")
	}

	return nil
}

// DeleteSession ends the current session.
func (c *Client) DeleteSession(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	_, err := c.delete(ctx, fmt.Sprintf("/session/%s", c.sessionID))
	c.sessionID = ""
	return err
}

// HasSession returns true if a session is active.
func (c *Client) HasSession() bool {
	return c.sessionID != ""
}

// SessionID returns the current session ID.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Status returns WDA status.
func (c *Client) Status(ctx context.Context) (map[string]interface{}, error) {
	return c.get(ctx, "/status")
}

// App management

// LaunchApp launches an app by bundle ID.
func (c *Client) LaunchApp(ctx context.Context, bundleID string) error {
	_, err := c.post(ctx, c.sessionPath("/wda/apps/launch"), map[string]interface{}{
		"bundleId": bundleID,
	})
	return err
}

// TerminateApp terminates an app by bundle ID.
func (c *Client) TerminateApp(ctx context.Context, bundleID string) error {
	_, err := c.post(ctx, c.sessionPath("/wda/apps/terminate"), map[string]interface{}{
		"bundleId": bundleID,
	})
	return err
}

// Touch actions

// Tap performs a tap at coordinates.
func (c *Client) Tap(ctx context.Context, x, y float64) error {
	_, err := c.post(ctx, c.sessionPath("/wda/tap"), map[string]interface{}{
		"x": x,
		"y": y,
	})
	return err
}

// Swipe performs a drag gesture.
func (c *Client) Swipe(ctx context.Context, fromX, fromY, toX, toY float64, durationSec float64) error {
	_, err := c.post(ctx, c.sessionPath("/wda/dragfromtoforduration"), map[string]interface{}{
		"fromX":    fromX,
		"fromY":    fromY,
		"toX":      toX,
		"toY":      toY,
		"duration": durationSec,
	})
	return err
}

// Screen

// Screenshot captures the screen as PNG.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	resp, err := c.get(ctx, c.sessionPath("/screenshot"))
	if err != nil {
		return nil, err
	}

	if value, ok := resp["value"].(string); ok {
		return base64.StdEncoding.DecodeString(value)
	}
	return nil, fmt.Errorf("invalid screenshot response")
}

// Source returns the UI hierarchy as XML.
func (c *Client) Source(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.sessionPath("/source"))
	if err != nil {
		return "", err
	}

	if value, ok := resp["value"].(string); ok {
		return value, nil
	}
	return "", fmt.Errorf("invalid source response")
}

// WindowSize returns the screen dimensions.
func (c *Client) WindowSize(ctx context.Context) (width, height int, err error) {
	resp, err := c.get(ctx, c.sessionPath("/window/size"))
	if err != nil {
		return 0, 0, err
	}

	if value, ok := resp["value"].(map[string]interface{}); ok {
		if w, ok := value["width"].(float64); ok {
			width = int(w)
		}
		if h, ok := value["height"].(float64); ok {
			height = int(h)
		}
		return width, height, nil
	}
	return 0, 0, fmt.Errorf("invalid window size response")
}

// Alerts

// AlertText returns the text of the visible alert.
func (c *Client) AlertText(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.sessionPath("/alert/text"))
	if err != nil {
		return "", err
	}
	if value, ok := resp["value"].(string); ok {
		return value, nil
	}
	return "", nil
}

// AlertButtons returns the button labels of the visible alert.
func (c *Client) AlertButtons(ctx context.Context) ([]string, error) {
	resp, err := c.get(ctx, c.sessionPath("/wda/alert/buttons"))
	if err != nil {
		return nil, err
	}
	var buttons []string
	if values, ok := resp["value"].([]interface{}); ok {
		for _, v := range values {
			if s, ok := v.(string); ok {
				buttons = append(buttons, s)
			}
		}
	}
	return buttons, nil
}

// AcceptAlert taps the alert button with the given label.
func (c *Client) AcceptAlert(ctx context.Context, name string) error {
	_, err := c.post(ctx, c.sessionPath("/alert/accept"), map[string]interface{}{
		"name": name,
	})
	return err
}

// HTTP helpers

func (c *Client) sessionPath(path string) string {
	if c.sessionID != "" {
		return fmt.Sprintf("/session/%s%s", c.sessionID, path)
	}
	return path
}

func (c *Client) get(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (map[string]interface{}, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) delete(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// do sends one request bounded by ctx as well as the client timeout.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return c.parseResponse(resp)
}

func (c *Client) parseResponse(resp *http.Response) (map[string]interface{}, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, string(body))
	}

	// Check for WDA error
	if value, ok := result["value"].(map[string]interface{}); ok {
		if code, ok := value["error"].(string); ok {
			message := code
			if msg, ok := value["message"].(string); ok {
				message = msg
			}
			return nil, &Error{Code: code, Message: message}
		}
	}

	return result, nil
}
