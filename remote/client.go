// ABOUTME: PostgREST-style row-store client for the leads and events tables
// ABOUTME: Implements the sync.Remote interface over plain HTTP with bearer auth
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/coldflow/coldflow/models"
	"github.com/coldflow/coldflow/sync"
)

const defaultPageSize = 1000

// StatusError is a remote failure carrying the HTTP status, so the engine
// can tell authorization failures from transient ones.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote returned status %d: %s", e.Code, e.Body)
}

func (e *StatusError) StatusCode() int {
	return e.Code
}

// TokenSource supplies the current bearer token, empty when signed out.
type TokenSource func() string

// Client talks to a PostgREST-compatible row store.
type Client struct {
	baseURL     string
	apiKey      string
	tokens      TokenSource
	httpClient  *http.Client
	leadsTable  string
	eventsTable string
	pageSize    int
}

// NewClient builds a Client for the given REST endpoint. tokens may be nil
// when only the service API key is used.
func NewClient(baseURL, apiKey string, tokens TokenSource) *Client {
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		tokens:      tokens,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		leadsTable:  "leads",
		eventsTable: "lead_events",
		pageSize:    defaultPageSize,
	}
}

// SelectLeads implements sync.Remote. Rows come back ordered by updated_at
// ascending; full pulls page through the whole table with Range headers.
func (c *Client) SelectLeads(ctx context.Context, sinceMillis int64, full bool) ([]sync.LeadRow, error) {
	var rows []sync.LeadRow

	for offset := 0; ; offset += c.pageSize {
		query := url.Values{}
		query.Set("select", "id,updated_at,deleted_at,payload")
		query.Set("order", "updated_at.asc")
		if !full {
			query.Set("updated_at", "gt."+strconv.FormatInt(sinceMillis, 10))
		}

		req, err := c.newRequest(ctx, http.MethodGet, "/rest/v1/"+c.leadsTable+"?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Range-Unit", "items")
		req.Header.Set("Range", fmt.Sprintf("%d-%d", offset, offset+c.pageSize-1))

		var page []sync.LeadRow
		if err := c.do(req, &page); err != nil {
			return nil, err
		}
		rows = append(rows, page...)

		if !full || len(page) < c.pageSize {
			break
		}
	}

	return rows, nil
}

// UpsertLead implements sync.Remote with an id-conflict merge, so replays
// of the same row are idempotent.
func (c *Client) UpsertLead(ctx context.Context, row sync.LeadRow) error {
	body, err := json.Marshal([]sync.LeadRow{row})
	if err != nil {
		return fmt.Errorf("failed to marshal lead row: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/rest/v1/"+c.leadsTable+"?on_conflict=id", body)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")
	return c.do(req, nil)
}

// TombstoneLead implements sync.Remote by patching the row's timestamps in
// place rather than deleting the row.
func (c *Client) TombstoneLead(ctx context.Context, id string, updatedAt, deletedAt int64) error {
	body, err := json.Marshal(map[string]int64{
		"updated_at": updatedAt,
		"deleted_at": deletedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal tombstone: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPatch, "/rest/v1/"+c.leadsTable+"?id=eq."+url.QueryEscape(id), body)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")
	return c.do(req, nil)
}

// MergeLeads implements sync.Remote via the privileged apply_lead_merge
// procedure, which merges and deletes atomically server-side.
func (c *Client) MergeLeads(ctx context.Context, primaryID string, payload json.RawMessage, duplicateIDs []string) error {
	body, err := json.Marshal(map[string]any{
		"primary_id":     primaryID,
		"merged_payload": payload,
		"duplicate_ids":  duplicateIDs,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal merge call: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/rest/v1/rpc/apply_lead_merge", body)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// InsertEvent implements sync.Remote.
func (c *Client) InsertEvent(ctx context.Context, event models.LeadEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/rest/v1/"+c.eventsTable, body)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")
	return c.do(req, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	token := c.apiKey
	if c.tokens != nil {
		if t := c.tokens(); t != "" {
			token = t
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remote request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode remote response: %w", err)
		}
	}
	return nil
}
