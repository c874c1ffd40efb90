package models

// MSubscriber is an email recipient, from the CMS or the email platform audience.
type MSubscriber struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Company   string `json:"company,omitempty"`
}
