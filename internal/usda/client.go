// Package usda queries USDA FoodData Central, the authoritative nutrient
// source.
package usda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://api.nal.usda.gov/fdc/v1"
	DefaultTimeout = 10 * time.Second

	pageSize = 5
)

var (
	ErrNoAPIKey  = errors.New("usda: no API key configured")
	ErrNoResults = errors.New("usda: no foods matched")
)

// StatusError is a non-2xx response from FoodData Central.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("usda: unexpected status %d: %s", e.Code, e.Body)
}

// Nutrient is one entry of a food's foodNutrients list.
type Nutrient struct {
	ID    int     `json:"nutrientId"`
	Name  string  `json:"nutrientName"`
	Unit  string  `json:"unitName"`
	Value float64 `json:"value"`
}

// Food is a search hit. FoodData Central reports search-result nutrients per
// 100 g.
type Food struct {
	FDCID       int        `json:"fdcId"`
	Description string     `json:"description"`
	Nutrients   []Nutrient `json:"foodNutrients"`
}

type searchResponse struct {
	TotalHits int    `json:"totalHits"`
	Foods     []Food `json:"foods"`
}

// Client calls the FoodData Central search endpoint.
type Client struct {
	apiKey string
	http   *resty.Client
}

// New creates a Client. Empty baseURL and zero timeout select the defaults.
func New(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	return &Client{apiKey: apiKey, http: c}
}

// Search returns the best match for query: the first food of a five-item
// search page.
func (c *Client) Search(ctx context.Context, query string) (*Food, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	var out searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"api_key":  c.apiKey,
			"query":    query,
			"pageSize": fmt.Sprint(pageSize),
		}).
		SetResult(&out).
		Get("/foods/search")
	if err != nil {
		return nil, fmt.Errorf("usda search: %w", err)
	}
	if resp.IsError() {
		return nil, &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
	if len(out.Foods) == 0 {
		return nil, ErrNoResults
	}
	food := out.Foods[0]
	return &food, nil
}
