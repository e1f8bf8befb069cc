package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/markstur/caikit/pkg/types"
)

// client is a minimal HTTP client for the caikitd API.
type client struct {
	base string
	http *http.Client
}

func newClient(server string) *client {
	return &client{
		base: strings.TrimRight(server, "/"),
		http: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *client) listModels() (types.ModelsResponse, error) {
	var out types.ModelsResponse
	err := c.do(http.MethodGet, "/models", nil, &out)
	return out, err
}

func (c *client) loadModel(id string, req types.LoadRequest) (types.ModelInfo, error) {
	var out types.ModelInfo
	err := c.do(http.MethodPut, "/models/"+url.PathEscape(id), req, &out)
	return out, err
}

func (c *client) predict(id string, req types.PredictRequest) (types.PredictResponse, error) {
	var out types.PredictResponse
	err := c.do(http.MethodPost, "/models/"+url.PathEscape(id)+"/predict", req, &out)
	return out, err
}

func (c *client) unloadModel(id string) error {
	return c.do(http.MethodDelete, "/models/"+url.PathEscape(id), nil, nil)
}

func (c *client) status() (types.StatusResponse, error) {
	var out types.StatusResponse
	err := c.do(http.MethodGet, "/status", nil, &out)
	return out, err
}

// do issues one request and decodes the JSON response into out when
// non-nil. API errors are surfaced as "server message (HTTP status)".
func (c *client) do(method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr types.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("request failed (HTTP %d)", resp.StatusCode)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
