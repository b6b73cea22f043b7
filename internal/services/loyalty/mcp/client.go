package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client calls the loyalty HTTP API on behalf of MCP tool handlers.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds an API client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type cardInstance struct {
	ID          string  `json:"id"`
	TemplateID  string  `json:"template_id"`
	UserRef     string  `json:"user_ref"`
	StampsGiven int     `json:"stamps_given"`
	StampTotal  int     `json:"stamp_total"`
	IssuedAt    string  `json:"issued_at"`
	CompletedAt *string `json:"completed_at"`
}

type cardReward struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	StampNo int    `json:"stamp_no"`
	Stock   *int64 `json:"stock"`
}

type cardRedemption struct {
	ID     string  `json:"id"`
	LinkID string  `json:"link_id"`
	Used   bool    `json:"used"`
	UsedAt *string `json:"used_at"`
}

type cardView struct {
	Instance    cardInstance     `json:"instance"`
	Unlocked    []cardReward     `json:"unlocked"`
	Redemptions []cardRedemption `json:"redemptions"`
}

type templateView struct {
	ID            string `json:"id"`
	CompanyRef    string `json:"company_ref"`
	Title         string `json:"title"`
	StampTotal    int    `json:"stamp_total"`
	Active        bool   `json:"active"`
	ConfigVersion int64  `json:"config_version"`
}

func (c *Client) getCard(ctx context.Context, instanceID string) (cardView, error) {
	var view cardView
	err := c.getJSON(ctx, "/v1/instances/"+url.PathEscape(instanceID), &view)
	return view, err
}

func (c *Client) listRewards(ctx context.Context, templateID string) ([]cardReward, error) {
	var out struct {
		Rewards []cardReward `json:"rewards"`
	}
	err := c.getJSON(ctx, "/v1/templates/"+url.PathEscape(templateID)+"/rewards", &out)
	return out.Rewards, err
}

func (c *Client) listTemplates(ctx context.Context, companyRef, filter string, limit int) ([]templateView, error) {
	query := url.Values{}
	if companyRef != "" {
		query.Set("company_ref", companyRef)
	}
	if filter != "" {
		query.Set("filter", filter)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/templates"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out struct {
		Templates []templateView `json:"templates"`
	}
	err := c.getJSON(ctx, path, &out)
	return out.Templates, err
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call loyalty API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error apiError `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&failure); err != nil || failure.Error.Code == "" {
			return fmt.Errorf("loyalty API returned status %d", resp.StatusCode)
		}
		return failure.Error
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode loyalty API response: %w", err)
	}
	return nil
}
