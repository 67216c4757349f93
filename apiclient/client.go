/*
Package apiclient is the HTTP implementation of editor.Gateway.

PURPOSE:
  Speaks the slip server's REST dialect on behalf of an editing session.
  It reuses the api package's wire types and converters, so amounts are
  parsed from their wire strings exactly once, at this edge.

ERROR SURFACING:
  Non-2xx responses decode the server's ErrorResponse body into a
  *RemoteError, whose UserMessage() lets the session show the server's
  own message (a validation failure echoed by the server reads exactly
  like a local one).

SEE ALSO:
  - editor/session.go: the Gateway consumer
  - api/handlers.go: the server side of this contract
*/
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/warp/slip-engine/api"
	"github.com/warp/slip-engine/slip"
)

const dateFormat = "2006-01-02"

// RemoteError is a non-2xx response from the slip server.
type RemoteError struct {
	Status  int
	Message string
	Details string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// UserMessage returns the server's user-facing message.
func (e *RemoteError) UserMessage() string { return e.Message }

// Client implements editor.Gateway over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// NewWithHTTPClient substitutes the underlying HTTP client. Tests pass
// an httptest server's client here.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: baseURL, http: hc}
}

// =============================================================================
// GATEWAY IMPLEMENTATION
// =============================================================================

func (c *Client) SearchHeaders(ctx context.Context, p slip.SearchParams) ([]slip.Header, error) {
	q := url.Values{}
	if p.OfficeCode != "" {
		q.Set("office_code", p.OfficeCode)
	}
	if p.DeptCode != "" {
		q.Set("dept_code", p.DeptCode)
	}
	if !p.DateFrom.IsZero() {
		q.Set("date_from", p.DateFrom.Format(dateFormat))
	}
	if !p.DateTo.IsZero() {
		q.Set("date_to", p.DateTo.Format(dateFormat))
	}

	var dtos []api.HeaderDTO
	if err := c.do(ctx, http.MethodGet, "/api/slips?"+q.Encode(), nil, &dtos); err != nil {
		return nil, err
	}

	headers := make([]slip.Header, len(dtos))
	for i, dto := range dtos {
		h, err := api.FromHeaderDTO(dto)
		if err != nil {
			return nil, err
		}
		headers[i] = h
	}
	return headers, nil
}

func (c *Client) FetchHeader(ctx context.Context, id slip.HeaderID) (*slip.Header, error) {
	var dto api.HeaderDTO
	if err := c.do(ctx, http.MethodGet, "/api/slips/"+url.PathEscape(string(id)), nil, &dto); err != nil {
		return nil, err
	}
	h, err := api.FromHeaderDTO(dto)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) FetchDetails(ctx context.Context, id slip.HeaderID) ([]slip.DetailLine, error) {
	var dtos []api.DetailDTO
	if err := c.do(ctx, http.MethodGet, "/api/slips/"+url.PathEscape(string(id))+"/details", nil, &dtos); err != nil {
		return nil, err
	}

	lines := make([]slip.DetailLine, len(dtos))
	for i, dto := range dtos {
		l, err := api.FromDetailDTO(dto)
		if err != nil {
			return nil, err
		}
		lines[i] = l
	}
	return lines, nil
}

func (c *Client) CreateHeaderID(ctx context.Context) (slip.HeaderID, error) {
	var res api.HeaderIDDTO
	if err := c.do(ctx, http.MethodPost, "/api/slips/ids", nil, &res); err != nil {
		return "", err
	}
	return slip.HeaderID(res.HeaderID), nil
}

func (c *Client) NextSerial(ctx context.Context, req slip.SerialRequest) (slip.SerialResult, error) {
	body := api.SerialRequestDTO{
		OfficeCode: req.OfficeCode,
		DeptCode:   req.DeptCode,
	}
	if !req.SlipDate.IsZero() {
		body.SlipDate = req.SlipDate.Format(dateFormat)
	}

	var res api.SerialDTO
	if err := c.do(ctx, http.MethodPost, "/api/serials", body, &res); err != nil {
		return slip.SerialResult{}, err
	}

	date, err := time.Parse(dateFormat, res.SlipDate)
	if err != nil {
		return slip.SerialResult{}, fmt.Errorf("bad slip_date in serial response: %w", err)
	}
	return slip.SerialResult{
		SerialNo:   res.SerialNo,
		OfficeCode: res.OfficeCode,
		DeptCode:   res.DeptCode,
		SlipDate:   date,
	}, nil
}

func (c *Client) Save(ctx context.Context, req slip.SaveRequest) error {
	return c.do(ctx, http.MethodPost, "/api/slips", api.ToSaveSlipRequest(req), nil)
}

func (c *Client) Delete(ctx context.Context, req slip.SaveRequest) error {
	return c.do(ctx, http.MethodPost, "/api/slips/delete", api.ToSaveSlipRequest(req), nil)
}

func (c *Client) SaveCopy(ctx context.Context, req slip.SaveRequest) error {
	return c.do(ctx, http.MethodPost, "/api/slips/copy", api.ToSaveSlipRequest(req), nil)
}

// =============================================================================
// TRANSPORT
// =============================================================================

// do issues one request and decodes the response into out (when non-nil).
// Non-2xx responses become *RemoteError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var remote api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&remote); err != nil || remote.Error == "" {
			remote.Error = http.StatusText(resp.StatusCode)
		}
		return &RemoteError{Status: resp.StatusCode, Message: remote.Error, Details: remote.Details}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
