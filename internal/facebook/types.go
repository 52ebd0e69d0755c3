package facebook

import "fmt"

// Action is a single entry of the actions / cost_per_action_type arrays.
// The Graph API serializes numeric values as strings.
type Action struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

// InsightRow is one row from the /insights edge. Fields not requested
// come back empty.
type InsightRow struct {
	CampaignName string `json:"campaign_name,omitempty"`
	CampaignID   string `json:"campaign_id,omitempty"`
	Objective    string `json:"objective,omitempty"`
	AdsetName    string `json:"adset_name,omitempty"`
	AdsetID      string `json:"adset_id,omitempty"`
	AdName       string `json:"ad_name,omitempty"`
	AdID         string `json:"ad_id,omitempty"`

	Spend       string `json:"spend,omitempty"`
	Impressions string `json:"impressions,omitempty"`
	Reach       string `json:"reach,omitempty"`
	Clicks      string `json:"clicks,omitempty"`
	CTR         string `json:"ctr,omitempty"`
	CPC         string `json:"cpc,omitempty"`
	CPM         string `json:"cpm,omitempty"`
	CPP         string `json:"cpp,omitempty"`
	Frequency   string `json:"frequency,omitempty"`

	Actions           []Action `json:"actions,omitempty"`
	CostPerActionType []Action `json:"cost_per_action_type,omitempty"`
}

// Activity is one entry of an /activities edge (account, campaign or adset).
type Activity struct {
	EventType           string `json:"event_type"`
	EventTime           string `json:"event_time"`
	ActorID             string `json:"actor_id"`
	ActorName           string `json:"actor_name"`
	ObjectID            string `json:"object_id"`
	ObjectName          string `json:"object_name"`
	ObjectType          string `json:"object_type"`
	TranslatedEventType string `json:"translated_event_type"`
}

// Campaign carries the metadata fields used by the activity fallback path.
type Campaign struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	CreatedTime    string `json:"created_time"`
	UpdatedTime    string `json:"updated_time"`
	DailyBudget    string `json:"daily_budget,omitempty"`
	LifetimeBudget string `json:"lifetime_budget,omitempty"`
}

// BusinessInfo describes a Business Manager.
type BusinessInfo struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	CreatedTime        string `json:"created_time"`
	Link               string `json:"link"`
	VerificationStatus string `json:"verification_status"`
}

// GraphError is the error envelope the Graph API returns alongside (or
// instead of) data.
type GraphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph API error (code %d): %s", e.Code, e.Message)
}
