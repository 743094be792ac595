// Package nutritionix calls the Nutritionix natural-language nutrients
// endpoint, the secondary nutrient source.
package nutritionix

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultURL     = "https://trackapi.nutritionix.com/v2/natural/nutrients"
	DefaultTimeout = 10 * time.Second
)

var (
	ErrNotConfigured = errors.New("nutritionix: app id or key not configured")
	ErrTimeout       = errors.New("nutritionix: request timed out")
	ErrEmpty         = errors.New("nutritionix: no foods in response")
)

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("nutritionix: status %d: %s", e.Code, e.Body)
}

// Food is one parsed item. Values describe the serving, not 100 g.
type Food struct {
	Name               string  `json:"food_name"`
	ServingQty         float64 `json:"serving_qty"`
	ServingUnit        string  `json:"serving_unit"`
	ServingWeightGrams float64 `json:"serving_weight_grams"`
	Calories           float64 `json:"nf_calories"`
	Protein            float64 `json:"nf_protein"`
	Carbs              float64 `json:"nf_total_carbohydrate"`
	Fat                float64 `json:"nf_total_fat"`
	Fiber              float64 `json:"nf_dietary_fiber"`
}

type naturalRequest struct {
	Query string `json:"query"`
}

type naturalResponse struct {
	Foods []Food `json:"foods"`
}

// Client posts free-text food descriptions to Nutritionix.
type Client struct {
	url    string
	appID  string
	appKey string
	http   *resty.Client
}

// New creates a Client. Empty url and zero timeout select the defaults.
func New(url, appID, appKey string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:    url,
		appID:  appID,
		appKey: appKey,
		http:   resty.New().SetTimeout(timeout),
	}
}

// Configured reports whether both credentials are set.
func (c *Client) Configured() bool {
	return c.appID != "" && c.appKey != ""
}

// Natural parses query ("2 eggs and a slice of toast") into foods.
func (c *Client) Natural(ctx context.Context, query string) ([]Food, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var out naturalResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-app-id", c.appID).
		SetHeader("x-app-key", c.appKey).
		SetHeader("Content-Type", "application/json").
		SetBody(naturalRequest{Query: query}).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		if isTimeout(err) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("nutritionix request: %w", err)
	}
	if resp.IsError() {
		return nil, &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
	if len(out.Foods) == 0 {
		return nil, ErrEmpty
	}
	return out.Foods, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
