package models

import "time"

// QuoteSource tags which upstream input determined the price.
type QuoteSource string

const (
	SourceRealtimeQuote QuoteSource = "realtime_quote"
	SourceRealtimeTrade QuoteSource = "realtime_trade"
	SourceSnapshot      QuoteSource = "snapshot"
	SourceEndOfDay      QuoteSource = "end_of_day"
)

// MQuote is the normalized quote served to clients and rendered into emails.
type MQuote struct {
	Symbol        string      `json:"symbol"`
	Price         float64     `json:"price"`
	Open          *float64    `json:"open"`
	High          float64     `json:"high"`
	Low           float64     `json:"low"`
	Volume        int64       `json:"volume"`
	Change        float64     `json:"change"`
	ChangePercent float64     `json:"changePercent"`
	PreviousClose *float64    `json:"previousClose"`
	BidPrice      *float64    `json:"bidPrice,omitempty"`
	AskPrice      *float64    `json:"askPrice,omitempty"`
	Spread        *float64    `json:"spread,omitempty"`
	LastUpdated   time.Time   `json:"lastUpdated"`
	Source        QuoteSource `json:"source"`
}

// MDailyBar is a historical open/close record for one trading day.
type MDailyBar struct {
	Status     string   `json:"status"`
	Symbol     string   `json:"symbol"`
	Date       string   `json:"date"`
	Open       float64  `json:"open"`
	High       float64  `json:"high"`
	Low        float64  `json:"low"`
	Close      float64  `json:"close"`
	Volume     int64    `json:"volume"`
	AfterHours *float64 `json:"afterHours,omitempty"`
	PreMarket  *float64 `json:"preMarket,omitempty"`
	Source     string   `json:"source"`
}
