// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ctlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	laddrerrors "grimm.is/laddrd/internal/errors"
)

// Client is the laddrctl-side HTTP client for a running Server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client talking to a Server at baseURL (e.g. "http://127.0.0.1:7999").
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{}}
}

func (c *Client) Add(ctx context.Context, req AddRequest) error {
	_, err := c.do(ctx, http.MethodPost, "/v1/laddr", req, nil)
	return err
}

func (c *Client) Delete(ctx context.Context, req DeleteRequest) error {
	_, err := c.do(ctx, http.MethodDelete, "/v1/laddr", req, nil)
	return err
}

func (c *Client) Flush(ctx context.Context, sel ServiceSelector) error {
	_, err := c.do(ctx, http.MethodPost, "/v1/laddr/flush", sel, nil)
	return err
}

func (c *Client) GetAll(ctx context.Context, sel ServiceSelector) (*GetAllResponse, error) {
	q := url.Values{}
	if sel.VAddr != "" {
		q.Set("vaddr", sel.VAddr)
	}
	if sel.Proto != "" {
		q.Set("proto", sel.Proto)
	}
	var resp GetAllResponse
	path := "/v1/laddr"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	if _, err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, laddrerrors.Wrap(err, laddrerrors.KindInvalid, "ctlplane: encode request")
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, laddrerrors.Wrap(err, laddrerrors.KindInternal, "ctlplane: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, laddrerrors.Wrap(err, laddrerrors.KindUnavailable, "ctlplane: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error == "" {
			errBody.Error = fmt.Sprintf("ctlplane: unexpected status %d", resp.StatusCode)
		}
		return resp, laddrerrors.New(kindForStatus(resp.StatusCode), errBody.Error)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, laddrerrors.Wrap(err, laddrerrors.KindInternal, "ctlplane: decode response")
		}
	}
	return resp, nil
}

func kindForStatus(status int) laddrerrors.Kind {
	switch status {
	case http.StatusBadRequest:
		return laddrerrors.KindInvalid
	case http.StatusNotFound:
		return laddrerrors.KindNotFound
	case http.StatusUnprocessableEntity:
		return laddrerrors.KindNotSupported
	case http.StatusConflict:
		return laddrerrors.KindBusy
	case http.StatusServiceUnavailable:
		return laddrerrors.KindExhausted
	case http.StatusInsufficientStorage:
		return laddrerrors.KindOOM
	default:
		return laddrerrors.KindInternal
	}
}
