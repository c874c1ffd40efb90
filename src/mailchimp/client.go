package mailchimp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ir-stock-service/src/helpers"
	"ir-stock-service/src/interfaces"
	"ir-stock-service/src/logger"
	"ir-stock-service/src/models"

	"github.com/tidwall/gjson"
)

const defaultPageSize = 500

// Client talks to the Mailchimp Marketing API v3.
type Client struct {
	APIKey       string
	ServerPrefix string
	AudienceID   string
	BaseURL      string
	PageSize     int
	Network      interfaces.INetworkManager
	Logger       *logger.Logger
}

// -----------------------------------------------------------------------------

func NewClient(cfg *models.MMailchimpConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Client{
		APIKey:       cfg.APIKey,
		ServerPrefix: cfg.ServerPrefix,
		AudienceID:   cfg.ListID,
		BaseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		PageSize:     pageSize,
		Network:      netMgr,
		Logger:       log,
	}
}

// -----------------------------------------------------------------------------

func (c *Client) ListID() string {
	return c.AudienceID
}

// -----------------------------------------------------------------------------
// Campaigns
// -----------------------------------------------------------------------------

type campaignRecipients struct {
	ListID string `json:"list_id"`
}

type campaignSettings struct {
	SubjectLine string `json:"subject_line"`
	Title       string `json:"title"`
	FromName    string `json:"from_name"`
	ReplyTo     string `json:"reply_to"`
}

type createCampaignPayload struct {
	Type       string             `json:"type"`
	Recipients campaignRecipients `json:"recipients"`
	Settings   campaignSettings   `json:"settings"`
}

type contentPayload struct {
	HTML      string `json:"html"`
	PlainText string `json:"plain_text,omitempty"`
}

type testPayload struct {
	TestEmails []string `json:"test_emails"`
	SendType   string   `json:"send_type"`
}

// CreateCampaign creates a regular campaign and returns its id.
func (c *Client) CreateCampaign(ctx context.Context, req models.MCampaignRequest) (string, error) {
	listID := req.ListID
	if listID == "" {
		listID = c.AudienceID
	}
	if err := c.ready(listID); err != nil {
		return "", err
	}

	body, err := c.call(ctx, http.MethodPost, "/campaigns", nil, createCampaignPayload{
		Type:       "regular",
		Recipients: campaignRecipients{ListID: listID},
		Settings: campaignSettings{
			SubjectLine: req.Subject,
			Title:       req.Title,
			FromName:    req.FromName,
			ReplyTo:     req.ReplyTo,
		},
	})
	if err != nil {
		return "", err
	}

	id := gjson.GetBytes(body, "id").String()
	if id == "" {
		return "", fmt.Errorf("mailchimp create campaign: response has no id")
	}
	if c.Logger != nil {
		c.Logger.Info("Created campaign %s for list %s", id, listID)
	}
	return id, nil
}

// -----------------------------------------------------------------------------

func (c *Client) SetContent(ctx context.Context, campaignID string, content models.MRenderedEmail) error {
	if err := c.ready(c.AudienceID); err != nil {
		return err
	}
	_, err := c.call(ctx, http.MethodPut, "/campaigns/"+url.PathEscape(campaignID)+"/content", nil, contentPayload{
		HTML:      content.HTML,
		PlainText: content.Text,
	})
	return err
}

// -----------------------------------------------------------------------------

func (c *Client) Send(ctx context.Context, campaignID string) error {
	if err := c.ready(c.AudienceID); err != nil {
		return err
	}
	_, err := c.call(ctx, http.MethodPost, "/campaigns/"+url.PathEscape(campaignID)+"/actions/send", nil, nil)
	if err == nil && c.Logger != nil {
		c.Logger.Info("Campaign %s sent", campaignID)
	}
	return err
}

// -----------------------------------------------------------------------------

func (c *Client) SendTest(ctx context.Context, campaignID string, emails []string) error {
	if err := c.ready(c.AudienceID); err != nil {
		return err
	}
	_, err := c.call(ctx, http.MethodPost, "/campaigns/"+url.PathEscape(campaignID)+"/actions/test", nil, testPayload{
		TestEmails: emails,
		SendType:   "html",
	})
	if err == nil && c.Logger != nil {
		c.Logger.Info("Campaign %s test-sent to %d address(es)", campaignID, len(emails))
	}
	return err
}

// -----------------------------------------------------------------------------
// Audience
// -----------------------------------------------------------------------------

// ListMembers returns one page of subscribed members and the total member count.
func (c *Client) ListMembers(ctx context.Context, offset, count int) ([]models.MSubscriber, int, error) {
	if err := c.ready(c.AudienceID); err != nil {
		return nil, 0, err
	}
	if count <= 0 {
		count = c.PageSize
	}

	body, err := c.call(ctx, http.MethodGet, "/lists/"+url.PathEscape(c.AudienceID)+"/members", map[string]string{
		"status": "subscribed",
		"count":  strconv.Itoa(count),
		"offset": strconv.Itoa(offset),
		"fields": "members.email_address,members.merge_fields,total_items",
	}, nil)
	if err != nil {
		return nil, 0, err
	}

	doc := gjson.ParseBytes(body)
	var members []models.MSubscriber
	doc.Get("members").ForEach(func(_, m gjson.Result) bool {
		members = append(members, models.MSubscriber{
			Email:     strings.TrimSpace(m.Get("email_address").String()),
			FirstName: m.Get("merge_fields.FNAME").String(),
			LastName:  m.Get("merge_fields.LNAME").String(),
			Company:   m.Get("merge_fields.COMPANY").String(),
		})
		return true
	})
	return members, int(doc.Get("total_items").Int()), nil
}

// -----------------------------------------------------------------------------
// Transport
// -----------------------------------------------------------------------------

func (c *Client) ready(listID string) error {
	switch {
	case c.APIKey == "":
		return helpers.NewConfigurationError("MAILCHIMP_API_KEY is not set")
	case c.BaseURL == "" && c.ServerPrefix == "":
		return helpers.NewConfigurationError("MAILCHIMP_SERVER_PREFIX is not set")
	case listID == "":
		return helpers.NewConfigurationError("MAILCHIMP_LIST_ID is not set")
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	base := c.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.api.mailchimp.com/3.0", c.ServerPrefix)
	}
	return base + path
}

func (c *Client) call(ctx context.Context, method, path string, params map[string]string, payload interface{}) ([]byte, error) {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("mailchimp %s: encode payload: %w", path, err)
		}
	}

	auth := base64.StdEncoding.EncodeToString([]byte("anystring:" + c.APIKey))
	resp, err := c.Network.Do(ctx, models.MHTTPRequest{
		Method:  method,
		URL:     c.endpoint(path),
		Params:  params,
		Headers: map[string]string{"Authorization": "Basic " + auth},
		Body:    data,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, helpers.NewUpstreamError("mailchimp "+method+" "+path, resp.StatusCode, resp.Body)
	}
	return resp.Body, nil
}
