// Package labcas implements a client for the EDRN LabCAS data-access API.
//
// The API is Solr-backed: collections, datasets, and files are queried
// through select endpoints taking q/wt/rows/start parameters and returning
// {"response": {"docs": [...], "numFound": N}} envelopes. Authentication is a
// JWT bearer token obtained with basic credentials; tokens age out after
// about half an hour and a 401 means refresh-and-retry.
package labcas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adi776borate/edrn-breast-density-croissant/internal/common"
)

// DefaultBaseURL is the production LabCAS deployment.
const DefaultBaseURL = "https://edrn-labcas.jpl.nasa.gov"

// tokenMaxAge is how long a JWT is trusted before a proactive refresh.
const tokenMaxAge = 30 * time.Minute

// Config carries everything needed to talk to LabCAS.
type Config struct {
	BaseURL  string
	Username string
	Password string
}

// Client is an authenticated LabCAS API client with automatic token refresh
// and a POST fallback for deployments that reject long GET queries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string

	mu          sync.Mutex
	token       string
	tokenIssued time.Time
}

// selectResponse is the Solr envelope every select endpoint returns.
type selectResponse struct {
	Response struct {
		Docs     []map[string]any `json:"docs"`
		NumFound int              `json:"numFound"`
	} `json:"response"`
}

// NewClient creates a LabCAS client. Credentials are validated lazily on the
// first request.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: labcas username and password are required", common.ErrMissingConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// refreshToken exchanges basic credentials for a fresh JWT.
func (c *Client) refreshToken(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/data-access-api/auth", nil)
	if err != nil {
		return fmt.Errorf("failed to create auth request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to authenticate with labcas: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: auth returned %d - %s", common.ErrUnauthorized, resp.StatusCode, string(body))
	}

	c.token = strings.TrimSpace(string(body))
	c.tokenIssued = time.Now()
	slog.Debug("labcas token refreshed")
	return nil
}

// ensureToken refreshes the JWT when missing or older than tokenMaxAge.
// Callers must hold c.mu.
func (c *Client) ensureToken(ctx context.Context) error {
	if c.token != "" && time.Since(c.tokenIssued) < tokenMaxAge {
		return nil
	}
	return c.refreshToken(ctx)
}

// doSelect issues one select query. On 401 it refreshes the token and retries
// once; on other GET failures it falls back to POST before giving up.
func (c *Client) doSelect(ctx context.Context, path string, params url.Values) (*selectResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	resp, err := c.request(ctx, http.MethodGet, path, params)
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		slog.Debug("labcas token expired, refreshing", "path", path)
		if refreshErr := c.refreshToken(ctx); refreshErr != nil {
			return nil, refreshErr
		}
		resp, err = c.request(ctx, http.MethodGet, path, params)
	}
	if err != nil || resp.StatusCode != http.StatusOK {
		if err == nil {
			_ = resp.Body.Close()
			slog.Debug("labcas GET failed, trying POST", "path", path, "status", resp.StatusCode)
		} else {
			slog.Debug("labcas GET failed, trying POST", "path", path, "error", err)
		}
		resp, err = c.request(ctx, http.MethodPost, path, params)
		if err != nil {
			return nil, fmt.Errorf("labcas request failed: %w", err)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, common.ErrRateLimit
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &common.RetryableError{
			Err:       fmt.Errorf("labcas API error: %d - %s", resp.StatusCode, string(body)),
			Retryable: resp.StatusCode >= 500,
		}
	}

	var sr selectResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode labcas response: %w", err)
	}
	return &sr, nil
}

func (c *Client) request(ctx context.Context, method, path string, params url.Values) (*http.Response, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.httpClient.Do(req)
}

// query runs one select with retry-on-transient-failure semantics.
func (c *Client) query(ctx context.Context, path, q string, rows, start int) (*selectResponse, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("wt", "json")
	params.Set("rows", strconv.Itoa(rows))
	params.Set("start", strconv.Itoa(start))

	var sr *selectResponse
	err := common.WithRetry(ctx, func() error {
		var opErr error
		sr, opErr = c.doSelect(ctx, path, params)
		return opErr
	}, common.RetryOptions{MaxAttempts: 3})
	if err != nil {
		return nil, err
	}
	return sr, nil
}

// ListCollections returns up to rows collection documents.
func (c *Client) ListCollections(ctx context.Context, rows int) ([]map[string]any, error) {
	sr, err := c.query(ctx, "/data-access-api/collections/select", "*:*", rows, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return sr.Response.Docs, nil
}

// ListDatasets returns up to rows dataset documents for one collection.
func (c *Client) ListDatasets(ctx context.Context, collectionID string, rows int) ([]map[string]any, error) {
	q := fmt.Sprintf("CollectionId:%q", collectionID)
	sr, err := c.query(ctx, "/data-access-api/datasets/select", q, rows, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets for %s: %w", collectionID, err)
	}
	return sr.Response.Docs, nil
}

// ListAllFiles pages through every file document for one dataset, batchSize
// rows at a time, until numFound is reached.
func (c *Client) ListAllFiles(ctx context.Context, datasetID string, batchSize int) ([]map[string]any, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	q := fmt.Sprintf("DatasetId:%q", datasetID)

	var all []map[string]any
	start := 0
	for {
		sr, err := c.query(ctx, "/data-access-api/files/select", q, batchSize, start)
		if err != nil {
			return nil, fmt.Errorf("failed to list files for %s at offset %d: %w", datasetID, start, err)
		}

		docs := sr.Response.Docs
		if len(docs) == 0 {
			break
		}
		all = append(all, docs...)
		start += len(docs)

		slog.Debug("retrieved file batch",
			"dataset", datasetID,
			"fetched", len(all),
			"num_found", sr.Response.NumFound)

		if len(all) >= sr.Response.NumFound {
			break
		}
	}
	return all, nil
}

// DownloadURL builds the authenticated download endpoint URL for a file.
func (c *Client) DownloadURL(fileID string) string {
	return DownloadURL(c.baseURL, fileID)
}

// DownloadURL builds a download endpoint URL against an arbitrary base.
func DownloadURL(baseURL, fileID string) string {
	return strings.TrimRight(baseURL, "/") + "/data-access-api/download?id=" + fileID
}
