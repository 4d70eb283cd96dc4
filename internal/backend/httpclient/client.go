package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"Driftline/internal/backend"
	"Driftline/internal/core/records"
)

// Client implements backend.RemoteService against the hosted HTTP API. Reads
// hit GET /collections/<name>, writes POST/PUT/DELETE the same resource, and
// Subscribe upgrades to a websocket change stream.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default pooled HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAuthToken sets the bearer token attached to every request.
func WithAuthToken(token string) Option {
	return func(c *Client) { c.authToken = token }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a backend client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Shared HTTP client with connection pooling
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// errorBody is the API's structured rejection payload.
type errorBody struct {
	Error string `json:"error"`
}

// FetchPage retrieves one page of a collection.
func (c *Client) FetchPage(ctx context.Context, collection string, q backend.PageQuery) ([]records.Record, error) {
	params := url.Values{}
	for field, value := range q.Where {
		params.Set(field, value)
	}
	if q.CreatedAfter != nil {
		params.Set("createdAfter", q.CreatedAfter.UTC().Format(time.RFC3339))
	}
	if q.OrderBy != "" {
		params.Set("orderBy", q.OrderBy)
		params.Set("descending", strconv.FormatBool(q.Descending))
	}
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("limit", strconv.Itoa(q.Limit))

	endpoint := fmt.Sprintf("%s/collections/%s?%s", c.baseURL, url.PathEscape(collection), params.Encode())
	raw, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return decodePage(collection, raw)
}

// FetchByIDs retrieves specific records by id. Missing ids are silently
// absent from the result.
func (c *Client) FetchByIDs(ctx context.Context, collection string, ids []string) ([]records.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))

	endpoint := fmt.Sprintf("%s/collections/%s?%s", c.baseURL, url.PathEscape(collection), params.Encode())
	raw, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return decodePage(collection, raw)
}

// Write performs one remote write. Inserts and updates return the
// server-confirmed record; deletes return nil.
func (c *Client) Write(ctx context.Context, collection string, op backend.WriteOp, rec records.Record) (records.Record, error) {
	var (
		method   string
		endpoint string
	)
	switch op {
	case backend.OpInsert:
		method = http.MethodPost
		endpoint = fmt.Sprintf("%s/collections/%s", c.baseURL, url.PathEscape(collection))
	case backend.OpUpdate:
		method = http.MethodPut
		endpoint = fmt.Sprintf("%s/collections/%s/%s", c.baseURL, url.PathEscape(collection), url.PathEscape(rec.RecordID()))
	case backend.OpDelete:
		method = http.MethodDelete
		endpoint = fmt.Sprintf("%s/collections/%s/%s", c.baseURL, url.PathEscape(collection), url.PathEscape(rec.RecordID()))
	default:
		return nil, &backend.ValidationError{Message: fmt.Sprintf("unknown write op %q", op)}
	}

	var body []byte
	if op != backend.OpDelete {
		payload, err := json.Marshal(rec)
		if err != nil {
			return nil, &backend.TransportError{Op: "write " + collection, Err: err}
		}
		body = payload
	}

	raw, err := c.do(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if op == backend.OpDelete {
		return nil, nil
	}

	confirmed, err := records.Decode(collection, raw)
	if err != nil {
		return nil, &backend.TransportError{Op: "write " + collection, Err: err}
	}
	return confirmed, nil
}

// do executes one request and maps the response onto the error taxonomy:
// network failures become TransportError, 400/422 bodies become
// ValidationError with the server's message verbatim, 401/403 become
// AuthError. Other non-2xx statuses are transport failures.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &backend.TransportError{Op: method + " " + endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &backend.TransportError{Op: method + " " + endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &backend.TransportError{Op: method + " " + endpoint, Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, nil

	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		var eb errorBody
		if err := json.Unmarshal(data, &eb); err != nil || eb.Error == "" {
			return nil, &backend.ValidationError{Message: ""}
		}
		return nil, &backend.ValidationError{Message: eb.Error}

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		return nil, &backend.AuthError{Reason: eb.Error}

	default:
		c.logger.Warn("unexpected API status",
			"method", method,
			"status", resp.StatusCode,
			"endpoint", endpoint)
		return nil, &backend.TransportError{
			Op:  method + " " + endpoint,
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
}

// decodePage unmarshals a page response into typed records. Records that
// fail to decode are skipped rather than failing the page.
func decodePage(collection string, raw json.RawMessage) ([]records.Record, error) {
	var page struct {
		Records []json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, &backend.TransportError{Op: "decode " + collection, Err: err}
	}
	return records.DecodeAll(collection, page.Records), nil
}
