package models

// MJobResult is the outcome of one EOD job run. Exactly one of Skipped, DryRun
// or Success is set.
type MJobResult struct {
	RunID           string  `json:"runId"`
	Skipped         bool    `json:"skipped,omitempty"`
	Reason          string  `json:"reason,omitempty"`
	DryRun          bool    `json:"dryRun,omitempty"`
	Subscribers     int     `json:"subscribers,omitempty"`
	StockPrice      float64 `json:"stockPrice,omitempty"`
	Success         bool    `json:"success,omitempty"`
	CampaignID      string  `json:"campaignId,omitempty"`
	SubscriberCount int     `json:"subscriberCount,omitempty"`
	StockData       *MQuote `json:"stockData,omitempty"`
}

func SkippedResult(reason string) *MJobResult {
	return &MJobResult{Skipped: true, Reason: reason}
}

func DryRunResult(subscribers int, price float64) *MJobResult {
	return &MJobResult{DryRun: true, Subscribers: subscribers, StockPrice: price}
}

func SuccessResult(campaignID string, subscriberCount int, quote *MQuote) *MJobResult {
	return &MJobResult{Success: true, CampaignID: campaignID, SubscriberCount: subscriberCount, StockData: quote}
}

// MRunOptions controls a single EOD job run.
type MRunOptions struct {
	DryRun    bool
	TestEmail string
}
