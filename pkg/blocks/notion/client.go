package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/dukex/blockflow/pkg/protocol"
)

const (
	DefaultBaseURL = "https://api.notion.com"
	APIVersion     = "2022-06-28"
)

var compactID = regexp.MustCompile(`^([0-9a-fA-F]{8})([0-9a-fA-F]{4})([0-9a-fA-F]{4})([0-9a-fA-F]{4})([0-9a-fA-F]{12})$`)

// APIError is an error response of the Notion API.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Client talks to the Notion REST API.
type Client struct {
	http    *http.Client
	baseURL string
}

func NewClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

// FormatID turns a 32 character compact id into its dashed form.
func FormatID(id string) string {
	return compactID.ReplaceAllString(strings.TrimSpace(id), "$1-$2-$3-$4-$5")
}

// ReadPage returns the page title, url and the plain text of its blocks.
func (c *Client) ReadPage(ctx context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
	pageID, err := required(req.Config, "pageId")
	if err != nil {
		return protocol.CallResult{}, err
	}

	apiKey, _ := req.Config["apiKey"].(string)
	pageID = FormatID(pageID)

	var page struct {
		ID             string                     `json:"id"`
		URL            string                     `json:"url"`
		LastEditedTime string                     `json:"last_edited_time"`
		CreatedTime    string                     `json:"created_time"`
		Properties     map[string]json.RawMessage `json:"properties"`
	}

	if err := c.do(ctx, apiKey, http.MethodGet, "/v1/pages/"+pageID, nil, &page); err != nil {
		return protocol.CallResult{}, err
	}

	var children struct {
		Results []map[string]any `json:"results"`
	}

	if err := c.do(ctx, apiKey, http.MethodGet, "/v1/blocks/"+pageID+"/children?page_size=100", nil, &children); err != nil {
		return protocol.CallResult{}, err
	}

	lines := make([]string, 0, len(children.Results))

	for _, block := range children.Results {
		if text := blockText(block); text != "" {
			lines = append(lines, text)
		}
	}

	return protocol.CallResult{Success: true, Output: map[string]any{
		"content": strings.Join(lines, "\n\n"),
		"metadata": map[string]any{
			"title":          pageTitle(page.Properties),
			"url":            page.URL,
			"lastEditedTime": page.LastEditedTime,
			"createdTime":    page.CreatedTime,
		},
	}}, nil
}

// WritePage appends content to a page as a paragraph.
func (c *Client) WritePage(ctx context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
	pageID, err := required(req.Config, "pageId")
	if err != nil {
		return protocol.CallResult{}, err
	}

	content, err := required(req.Config, "content")
	if err != nil {
		return protocol.CallResult{}, err
	}

	apiKey, _ := req.Config["apiKey"].(string)

	body := map[string]any{
		"children": []any{
			map[string]any{
				"object": "block",
				"type":   "paragraph",
				"paragraph": map[string]any{
					"rich_text": []any{
						map[string]any{"type": "text", "text": map[string]any{"content": content}},
					},
				},
			},
		},
	}

	if err := c.do(ctx, apiKey, http.MethodPatch, "/v1/blocks/"+FormatID(pageID)+"/children", body, nil); err != nil {
		return protocol.CallResult{}, err
	}

	return protocol.CallResult{Success: true, Output: map[string]any{"content": content, "pageId": FormatID(pageID)}}, nil
}

// QueryDatabase returns the records matching filter and sorts.
func (c *Client) QueryDatabase(ctx context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
	databaseID, err := required(req.Config, "databaseId")
	if err != nil {
		return protocol.CallResult{}, err
	}

	apiKey, _ := req.Config["apiKey"].(string)

	pageSize := 100
	if size, ok := req.Config["pageSize"].(float64); ok && size > 0 {
		pageSize = int(size)
	}

	body := map[string]any{"page_size": pageSize}
	if filter, ok := req.Config["filter"]; ok && filter != nil {
		body["filter"] = filter
	}

	if sorts, ok := req.Config["sorts"]; ok && sorts != nil {
		body["sorts"] = sorts
	}

	var resp struct {
		Results    []any   `json:"results"`
		NextCursor *string `json:"next_cursor"`
	}

	if err := c.do(ctx, apiKey, http.MethodPost, "/v1/databases/"+FormatID(databaseID)+"/query", body, &resp); err != nil {
		return protocol.CallResult{}, err
	}

	records := resp.Results
	if records == nil {
		records = []any{}
	}

	output := map[string]any{"records": records}
	if resp.NextCursor != nil {
		output["nextCursor"] = *resp.NextCursor
	}

	return protocol.CallResult{Success: true, Output: output}, nil
}

// CreateRecord adds a page to a database.
func (c *Client) CreateRecord(ctx context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
	databaseID, err := required(req.Config, "databaseId")
	if err != nil {
		return protocol.CallResult{}, err
	}

	properties, err := recordProperties(req.Config)
	if err != nil {
		return protocol.CallResult{}, err
	}

	apiKey, _ := req.Config["apiKey"].(string)

	body := map[string]any{
		"parent":     map[string]any{"database_id": databaseID},
		"properties": properties,
	}

	return c.pageResult(ctx, apiKey, http.MethodPost, "/v1/pages", body)
}

// UpdateRecord changes properties of a database page.
func (c *Client) UpdateRecord(ctx context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
	pageID, err := required(req.Config, "pageId")
	if err != nil {
		return protocol.CallResult{}, err
	}

	properties, err := recordProperties(req.Config)
	if err != nil {
		return protocol.CallResult{}, err
	}

	apiKey, _ := req.Config["apiKey"].(string)

	return c.pageResult(ctx, apiKey, http.MethodPatch, "/v1/pages/"+FormatID(pageID), map[string]any{"properties": properties})
}

func (c *Client) pageResult(ctx context.Context, apiKey, method, path string, body any) (protocol.CallResult, error) {
	var page struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}

	if err := c.do(ctx, apiKey, method, path, body, &page); err != nil {
		return protocol.CallResult{}, err
	}

	return protocol.CallResult{Success: true, Output: map[string]any{"pageId": page.ID, "url": page.URL}}, nil
}

func (c *Client) do(ctx context.Context, apiKey, method, path string, body, out any) error {
	var reader io.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("notion: encode request: %w", err)
		}

		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("notion: create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Notion-Version", APIVersion)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("notion: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("notion: read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = string(data)
		}

		return apiErr
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("notion: decode response: %w", err)
	}

	return nil
}

func required(config map[string]any, field string) (string, error) {
	value, ok := config[field].(string)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("missing required field '%s'", field)
	}

	return value, nil
}

// recordProperties accepts an object or its JSON text.
func recordProperties(config map[string]any) (map[string]any, error) {
	switch p := config["properties"].(type) {
	case map[string]any:
		return p, nil
	case string:
		var parsed map[string]any
		if err := json.Unmarshal([]byte(p), &parsed); err != nil {
			return nil, fmt.Errorf("properties must be a JSON object: %w", err)
		}

		return parsed, nil
	default:
		return nil, errors.New("missing required field 'properties'")
	}
}

func blockText(block map[string]any) string {
	blockType, _ := block["type"].(string)

	content, ok := block[blockType].(map[string]any)
	if !ok {
		return ""
	}

	return richText(content["rich_text"])
}

func richText(value any) string {
	items, ok := value.([]any)
	if !ok {
		return ""
	}

	var b strings.Builder

	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			if text, ok := m["plain_text"].(string); ok {
				b.WriteString(text)
			}
		}
	}

	return b.String()
}

func pageTitle(props map[string]json.RawMessage) string {
	for _, raw := range props {
		var prop struct {
			Type  string `json:"type"`
			Title []any  `json:"title"`
		}

		if json.Unmarshal(raw, &prop) == nil && prop.Type == "title" {
			return richText(prop.Title)
		}
	}

	return ""
}
