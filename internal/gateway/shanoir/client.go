package shanoir

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// Search/download parameters used for every query. Result sets are capped
// and sorted so that run indices are assigned in a stable order.
const (
	DefaultPageSize = 200
	SortSpec        = "id,ASC"

	// Heavy archives: the historical tool raises the timeout to 500s.
	defaultTimeoutSeconds = 500

	tokenPath  = "/auth/realms/shanoir-ng/protocol/openid-connect/token"
	searchPath = "/shanoir-ng/datasets/solr"
	dlPath     = "/shanoir-ng/datasets/datasets/download"

	oidcClientID = "shanoir-uploader"
)

// Config describes how to reach a Shanoir instance.
type Config struct {
	Domain         string
	Username       string
	Password       string
	TimeoutSeconds int
	PageSize       int
}

// Client wraps the Shanoir REST interactions needed by the download loop:
// token authentication, solr search, and per-dataset archive download.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	username   string
	password   string
	pageSize   int

	mu    sync.Mutex
	token string
}

// NewClient constructs a Shanoir client from configuration.
func NewClient(cfg Config) (*Client, error) {
	domain := strings.TrimSpace(cfg.Domain)
	if domain == "" {
		return nil, fmt.Errorf("shanoir domain cannot be empty")
	}
	if strings.TrimSpace(cfg.Username) == "" {
		return nil, fmt.Errorf("shanoir username cannot be empty")
	}
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	parsed, err := url.Parse(domain)
	if err != nil {
		return nil, fmt.Errorf("parsing shanoir domain failed: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
		username:   strings.TrimSpace(cfg.Username),
		password:   cfg.Password,
		pageSize:   pageSize,
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetToken injects an already-obtained access token (tests, token files).
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// authenticate obtains an access token through the password grant.
func (c *Client) authenticate(ctx context.Context) error {
	form := url.Values{}
	form.Set("client_id", oidcClientID)
	form.Set("grant_type", "password")
	form.Set("username", c.username)
	form.Set("password", c.password)
	form.Set("scope", "offline_access")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(tokenPath, nil),
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("shanoir authentication request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("shanoir authentication failed for user %s (status %d)", c.username, resp.StatusCode)
	}
	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		return fmt.Errorf("shanoir authentication response contains no access_token")
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return nil
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}
	if err := c.authenticate(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	token = c.token
	c.mu.Unlock()
	return token, nil
}

// Search runs one solr expert-mode query. The response status is passed
// through untouched; only transport-level failures surface as errors.
func (c *Client) Search(ctx context.Context, text string) (*SearchResponse, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(map[string]any{
		"searchText": text,
		"expertMode": true,
	})
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("page", "0")
	query.Set("size", fmt.Sprintf("%d", c.pageSize))
	query.Set("sort", SortSpec)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(searchPath, query),
		bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shanoir search request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	result := &SearchResponse{Status: resp.StatusCode}
	if resp.StatusCode == http.StatusOK {
		result.Items = parseSearchItems(body)
	}
	return result, nil
}

func parseSearchItems(body []byte) []Result {
	content := gjson.GetBytes(body, "content")
	if !content.Exists() || !content.IsArray() {
		return nil
	}
	var items []Result
	content.ForEach(func(_, item gjson.Result) bool {
		items = append(items, Result{
			ID:          item.Get("id").String(),
			DatasetID:   item.Get("datasetId").Int(),
			DatasetName: item.Get("datasetName").String(),
			StudyName:   item.Get("studyName").String(),
			SubjectName: item.Get("subjectName").String(),
			ExamComment: item.Get("examinationComment").String(),
			ExamDate:    item.Get("examinationDate").String(),
		})
		return true
	})
	return items
}

// Download fetches the archive for one search result into destDir and
// returns the archive path. The file name embeds the item id so that
// concurrent items for the same dataset name cannot collide.
func (c *Client) Download(ctx context.Context, item Result, fileType, destDir string) (string, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return "", err
	}
	format := "nii"
	if fileType == FileTypeDicom {
		format = "dcm"
	}
	query := url.Values{}
	query.Set("format", format)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint(fmt.Sprintf("%s/%d", dlPath, item.DatasetID), query), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("shanoir download request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("shanoir download of dataset %d returned status %d", item.DatasetID, resp.StatusCode)
	}

	path := filepath.Join(destDir, archiveFileName(item))
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing archive %s failed: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func archiveFileName(item Result) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, item.DatasetName)
	if name == "" {
		name = "dataset"
	}
	return fmt.Sprintf("%s-%s.zip", name, item.ID)
}
