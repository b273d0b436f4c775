package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	serverURL string
	userID    string
	token     string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cogctl",
		Short: "cogctl - talk to a cogload server",
		Long: `cogctl is a command-line interface for the cogload cognitive load server.
All output is structured JSON (pipe through jq for further filtering).`,
		Version:      version,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("COGLOAD_SERVER", "http://localhost:8080"), "cogload server URL")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", os.Getenv("COGLOAD_USER"), "User ID sent as X-User-ID when auth is off")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("COGLOAD_TOKEN"), "Bearer token when auth is on")

	rootCmd.AddCommand(newScoreCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newRecommendCommand())
	rootCmd.AddCommand(newRecommendationsCommand())
	rootCmd.AddCommand(newDismissCommand())
	rootCmd.AddCommand(newBriefingCommand())
	rootCmd.AddCommand(newFocusCommand())
	rootCmd.AddCommand(newSwitchCommand())
	rootCmd.AddCommand(newSyncCommand())
	rootCmd.AddCommand(newAnalyticsCommand())
	rootCmd.AddCommand(newLogCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newTokenCommand())
	rootCmd.AddCommand(newHealthCommand())
	return rootCmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// --- HTTP client ---

type Client struct {
	BaseURL string
	UserID  string
	Token   string
	HTTP    *http.Client
}

func newClient() *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(serverURL, "/"),
		UserID:  userID,
		Token:   token,
		HTTP:    &http.Client{Timeout: 90 * time.Second},
	}
}

func (c *Client) request(method, path string, params url.Values, data interface{}) (*http.Request, error) {
	u := c.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req.Header)
	return req, nil
}

func (c *Client) authorize(h http.Header) {
	if c.Token != "" {
		h.Set("Authorization", "Bearer "+c.Token)
	}
	if c.UserID != "" {
		h.Set("X-User-ID", c.UserID)
	}
}

func (c *Client) do(method, path string, params url.Values, data interface{}) ([]byte, error) {
	req, err := c.request(method, path, params, data)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return respBody, nil
}

func (c *Client) get(path string, params url.Values) ([]byte, error) {
	return c.do(http.MethodGet, path, params, nil)
}

func (c *Client) post(path string, data interface{}) ([]byte, error) {
	return c.do(http.MethodPost, path, nil, data)
}

func (c *Client) patch(path string, data interface{}) ([]byte, error) {
	return c.do(http.MethodPatch, path, nil, data)
}

// download streams a response body into w and returns the response headers
func (c *Client) download(path string, params url.Values, w io.Writer) (http.Header, error) {
	req, err := c.request(http.MethodGet, path, params, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.Header, nil
}

// outputJSON pretty-prints JSON data. All commands use this as the primary output path.
func outputJSON(data []byte) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		// Not valid JSON, print raw
		fmt.Println(string(data))
		return
	}
	_ = newEncoder().Encode(v)
}

func newEncoder() *json.Encoder {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc
}

func queryParams(kv ...interface{}) url.Values {
	params := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		key := kv[i].(string)
		switch v := kv[i+1].(type) {
		case int:
			if v > 0 {
				params.Set(key, fmt.Sprintf("%d", v))
			}
		case bool:
			if v {
				params.Set(key, "true")
			}
		case string:
			if v != "" {
				params.Set(key, v)
			}
		}
	}
	return params
}
