package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// errAPIError wraps a non-2xx response from the admin API.
var errAPIError = errors.New("admin api error")

// sessionView mirrors the JSON shape returned by internal/server.
type sessionView struct {
	BeginString      string `json:"begin_string"`
	SenderCompID     string `json:"sender_comp_id"`
	SenderSubID      string `json:"sender_sub_id,omitempty"`
	TargetCompID     string `json:"target_comp_id"`
	TargetSubID      string `json:"target_sub_id,omitempty"`
	ConnectionState  string `json:"connection_state"`
	LoggedOn         bool   `json:"logged_on"`
	NextSenderSeqNum int    `json:"next_sender_seq_num"`
	NextTargetSeqNum int    `json:"next_target_seq_num"`
}

// apiClient is a thin JSON HTTP client over the admin API, initialized in
// rootCmd's PersistentPreRunE.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(addr string) *apiClient {
	return &apiClient{baseURL: "http://" + addr, http: http.DefaultClient}
}

func (c *apiClient) listSessions() ([]sessionView, error) {
	var views []sessionView
	if err := c.do(http.MethodGet, "/sessions", nil, &views); err != nil {
		return nil, err
	}
	return views, nil
}

func (c *apiClient) getSession(begin, sender, target string) (sessionView, error) {
	var v sessionView
	path := fmt.Sprintf("/sessions/%s/%s/%s", begin, sender, target)
	if err := c.do(http.MethodGet, path, nil, &v); err != nil {
		return sessionView{}, err
	}
	return v, nil
}

func (c *apiClient) setEnabled(begin, sender, target string, enabled bool) (sessionView, error) {
	var v sessionView
	path := fmt.Sprintf("/sessions/%s/%s/%s/enabled", begin, sender, target)
	body := map[string]bool{"enabled": enabled}
	if err := c.do(http.MethodPut, path, body, &v); err != nil {
		return sessionView{}, err
	}
	return v, nil
}

func (c *apiClient) disconnect(begin, sender, target, reason string) (sessionView, error) {
	var v sessionView
	path := fmt.Sprintf("/sessions/%s/%s/%s/disconnect", begin, sender, target)
	body := map[string]string{"reason": reason}
	if err := c.do(http.MethodPost, path, body, &v); err != nil {
		return sessionView{}, err
	}
	return v, nil
}

func (c *apiClient) reset(begin, sender, target, reason string) (sessionView, error) {
	var v sessionView
	path := fmt.Sprintf("/sessions/%s/%s/%s/reset", begin, sender, target)
	body := map[string]string{"reason": reason}
	if err := c.do(http.MethodPost, path, body, &v); err != nil {
		return sessionView{}, err
	}
	return v, nil
}

func (c *apiClient) do(method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return fmt.Errorf("%s %s: %w: %s", method, path, errAPIError, apiErr.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
