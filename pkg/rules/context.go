package rules

import (
	"time"

	"adpilot-hq/adpilot/pkg/config"
)

// Well-known metric keys produced by the ingestion pipeline. Rolling-window
// metrics use a _w<days> suffix.
const (
	MetricClicks7d       = "clicks_w7"
	MetricClicks30d      = "clicks_w30"
	MetricImpressions7d  = "impressions_w7"
	MetricCost1d         = "cost_d1"
	MetricCost7d         = "cost_w7"
	MetricCost30d        = "cost_w30"
	MetricConversions7d  = "conversions_w7"
	MetricConversions30d = "conversions_w30"
	MetricValue7d        = "value_w7"
	MetricValue30d       = "value_w30"
	MetricROAS7d         = "roas_w7"
	MetricCPA7d          = "cpa_w7"
	MetricCPA30d         = "cpa_w30"
	MetricCTR7d          = "ctr_w7"
	MetricTargetROAS     = "target_roas"
	MetricTargetCPA      = "target_cpa"
)

// Diagnostic flag keys set by the ingestion pipeline.
const (
	FlagCostSpike       = "cost_spike"
	FlagCTRDrop         = "ctr_drop"
	FlagZeroConversions = "zero_conversions"
)

// FeatureContext is a read-only snapshot of one entity's metrics for one
// snapshot date, plus the active account policy. It is produced by the
// ingestion pipeline and is immutable for the duration of an evaluation
// pass; rules must treat it as such.
type FeatureContext struct {
	// AccountID is the owning platform account.
	AccountID string `json:"account_id"`

	// EntityID is the entity the snapshot describes.
	EntityID string `json:"entity_id"`

	// EntityType is the entity kind (e.g. "campaign", "ad_group").
	EntityType string `json:"entity_type"`

	// EntityName is the human-readable entity name.
	EntityName string `json:"entity_name"`

	// IsBrand marks brand entities, which are implicitly protected.
	IsBrand bool `json:"is_brand"`

	// SnapshotDate is the date the metrics were computed for.
	SnapshotDate time.Time `json:"snapshot_date"`

	// CurrentBudget is the entity's daily budget; zero if not applicable.
	CurrentBudget float64 `json:"current_budget"`

	// CurrentBid is the entity's bid; zero if not applicable.
	CurrentBid float64 `json:"current_bid"`

	// Enabled is the entity's serving status.
	Enabled bool `json:"enabled"`

	// Metrics holds rolling-window metric values. A key that is absent
	// means the value could not be computed; rules must treat absence as
	// "do not trigger", never as zero.
	Metrics map[string]float64 `json:"metrics"`

	// Flags holds diagnostic flags.
	Flags map[string]bool `json:"flags,omitempty"`

	// Policy is the active policy for the owning account.
	Policy *config.PolicyConfig `json:"-"`
}

// Metric returns the named metric and whether it is present.
func (c *FeatureContext) Metric(name string) (float64, bool) {
	v, ok := c.Metrics[name]
	return v, ok
}

// Flag reports whether the named diagnostic flag is set.
func (c *FeatureContext) Flag(name string) bool {
	return c.Flags[name]
}
