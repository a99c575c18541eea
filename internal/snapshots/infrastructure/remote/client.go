package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	snapshots "sitewatch-cloud/internal/snapshots/domain"
)

// Client reads raw wake-round rows from a remote snapshot store. It is the
// collaborator boundary: a failed fetch is terminal for the request and retry
// policy stays with the caller.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient constructs a snapshot store client.
func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("snapshot store: empty base url")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type snapshotRow struct {
	ID             string          `json:"id"`
	WakeRoundStart string          `json:"wake_round_start"`
	Payload        json.RawMessage `json:"payload"`
}

type snapshotPage struct {
	Rows   []snapshotRow `json:"rows"`
	Cursor string        `json:"cursor"`
}

// SnapshotsForSite fetches every stored row for one (site, program) pair,
// following the store's cursor pagination.
func (c *Client) SnapshotsForSite(ctx context.Context, siteID, programID string) ([]snapshots.RawSnapshot, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("snapshot store: nil client")
	}
	if siteID == "" || programID == "" {
		return nil, errors.New("snapshot store: invalid arguments")
	}

	result := make([]snapshots.RawSnapshot, 0)
	cursor := ""
	for {
		page, err := c.fetchPage(ctx, siteID, programID, cursor)
		if err != nil {
			return nil, err
		}
		for _, row := range page.Rows {
			result = append(result, snapshots.RawSnapshot{
				ID:             row.ID,
				SiteID:         siteID,
				ProgramID:      programID,
				WakeRoundStart: row.WakeRoundStart,
				Payload:        row.Payload,
			})
		}
		if page.Cursor == "" {
			return result, nil
		}
		cursor = page.Cursor
	}
}

func (c *Client) fetchPage(ctx context.Context, siteID, programID, cursor string) (snapshotPage, error) {
	params := url.Values{}
	params.Set("program_id", programID)
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	endpoint := fmt.Sprintf("%s/api/v1/sites/%s/snapshots?%s", c.baseURL, url.PathEscape(siteID), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return snapshotPage{}, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return snapshotPage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return snapshotPage{}, fmt.Errorf("snapshot store: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var page snapshotPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return snapshotPage{}, fmt.Errorf("snapshot store: decode response: %w", err)
	}
	return page, nil
}
