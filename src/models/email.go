package models

type MRenderedEmail struct {
	Subject string
	HTML    string
	Text    string
}

// MCampaignRequest carries the settings for a new regular campaign.
type MCampaignRequest struct {
	ListID   string
	Title    string
	Subject  string
	FromName string
	ReplyTo  string
}
