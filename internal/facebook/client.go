package facebook

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

const defaultGraphBaseURL = "https://graph.facebook.com/v21.0"

// Client is a thin wrapper over the Marketing API endpoints the insights
// tools need. All calls are plain GETs authenticated by access token.
type Client struct {
	baseURL     string
	accessToken string
	http        *http.Client
}

func NewClient(accessToken string) *Client {
	return &Client{
		baseURL:     defaultGraphBaseURL,
		accessToken: accessToken,
		http:        &http.Client{Timeout: 30 * time.Second},
	}
}

// SetBaseURL overrides the Graph endpoint, used by tests.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(base, "/")
}

// NormalizeAccountID ensures the act_ prefix the insights edges expect.
func NormalizeAccountID(id string) string {
	if strings.HasPrefix(id, "act_") {
		return id
	}
	return "act_" + id
}

// InsightsQuery selects the window, level and fields for an Insights call.
type InsightsQuery struct {
	Level  string
	Since  string // YYYY-MM-DD
	Until  string // YYYY-MM-DD
	Fields []string
	Limit  int
}

// Insights fetches performance rows for an ad account.
func (c *Client) Insights(ctx context.Context, accountID string, q InsightsQuery) ([]InsightRow, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	params := url.Values{
		"level":      {q.Level},
		"time_range": {fmt.Sprintf(`{"since":"%s","until":"%s"}`, q.Since, q.Until)},
		"fields":     {strings.Join(q.Fields, ",")},
		"limit":      {strconv.Itoa(limit)},
	}

	var rows []InsightRow
	if err := c.get(ctx, NormalizeAccountID(accountID)+"/insights", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Activities fetches the activity log of an account, campaign or adset.
// objectID must already carry the act_ prefix when it is an account.
func (c *Client) Activities(ctx context.Context, objectID string, since, until time.Time) ([]Activity, error) {
	params := url.Values{
		"since":  {strconv.FormatInt(since.Unix(), 10)},
		"until":  {strconv.FormatInt(until.Unix(), 10)},
		"fields": {"event_type,event_time,actor_id,actor_name,object_id,object_name,object_type,translated_event_type"},
		"limit":  {"100"},
	}

	var acts []Activity
	if err := c.get(ctx, objectID+"/activities", params, &acts); err != nil {
		return nil, err
	}
	return acts, nil
}

// Campaigns lists campaign metadata for an account. Used as a fallback when
// the activities edge is unavailable.
func (c *Client) Campaigns(ctx context.Context, accountID string) ([]Campaign, error) {
	params := url.Values{
		"fields": {"name,status,updated_time,created_time,daily_budget,lifetime_budget"},
		"limit":  {"100"},
	}

	var campaigns []Campaign
	if err := c.get(ctx, NormalizeAccountID(accountID)+"/campaigns", params, &campaigns); err != nil {
		return nil, err
	}
	return campaigns, nil
}

// BusinessInfo fetches general Business Manager metadata.
func (c *Client) BusinessInfo(ctx context.Context, businessID string) (*BusinessInfo, error) {
	params := url.Values{
		"fields": {"id,name,created_time,link,verification_status"},
	}

	u := fmt.Sprintf("%s/%s?%s", c.baseURL, businessID, c.withToken(params).Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		BusinessInfo
		Error *GraphError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode graph response: %w", err)
	}
	if body.Error != nil {
		return nil, body.Error
	}
	return &body.BusinessInfo, nil
}

// get performs a GET on {base}/{path} and decodes the data envelope into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := fmt.Sprintf("%s/%s?%s", c.baseURL, path, c.withToken(params).Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Data  json.RawMessage `json:"data"`
		Error *GraphError     `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode graph response: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode graph data: %w", err)
	}
	return nil
}

func (c *Client) withToken(params url.Values) url.Values {
	params.Set("access_token", c.accessToken)
	return params
}
