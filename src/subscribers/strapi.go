package subscribers

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"ir-stock-service/src/helpers"
	"ir-stock-service/src/interfaces"
	"ir-stock-service/src/logger"
	"ir-stock-service/src/models"

	"github.com/tidwall/gjson"
)

const (
	defaultStrapiPageSize = 100
	maxStrapiPages        = 1000
)

// StrapiSource reads opted-in subscribers from a Strapi collection. Both the v4
// ("attributes") and v5 (flat) response shapes are accepted.
type StrapiSource struct {
	BaseURL    string
	Token      string
	Collection string
	OptInField string
	PageSize   int
	Network    interfaces.INetworkManager
	Logger     *logger.Logger
}

// -----------------------------------------------------------------------------

func NewStrapiSource(cfg *models.MStrapiConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *StrapiSource {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultStrapiPageSize
	}
	return &StrapiSource{
		BaseURL:    strings.TrimRight(cfg.APIURL, "/"),
		Token:      cfg.APIToken,
		Collection: strings.Trim(cfg.Collection, "/"),
		OptInField: cfg.OptInField,
		PageSize:   pageSize,
		Network:    netMgr,
		Logger:     log,
	}
}

// -----------------------------------------------------------------------------

func (s *StrapiSource) Name() string {
	return "strapi"
}

// -----------------------------------------------------------------------------

// FetchSubscribers walks every page of the collection.
func (s *StrapiSource) FetchSubscribers(ctx context.Context) ([]models.MSubscriber, error) {
	if s.BaseURL == "" {
		return nil, helpers.NewConfigurationError("STRAPI_API_URL is not set")
	}

	endpoint := s.BaseURL + "/api/" + url.PathEscape(s.Collection)
	headers := map[string]string{}
	if s.Token != "" {
		headers["Authorization"] = "Bearer " + s.Token
	}

	var out []models.MSubscriber
	for page := 1; page <= maxStrapiPages; page++ {
		params := map[string]string{
			"pagination[page]":     strconv.Itoa(page),
			"pagination[pageSize]": strconv.Itoa(s.PageSize),
		}
		if s.OptInField != "" {
			params["filters["+s.OptInField+"][$eq]"] = "true"
		}

		resp, err := s.Network.Get(ctx, endpoint, params, headers)
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			return nil, helpers.NewUpstreamError("strapi "+s.Collection, resp.StatusCode, resp.Body)
		}

		doc := gjson.ParseBytes(resp.Body)
		doc.Get("data").ForEach(func(_, item gjson.Result) bool {
			attrs := item.Get("attributes")
			if !attrs.Exists() {
				attrs = item
			}
			out = append(out, models.MSubscriber{
				Email:     strings.TrimSpace(attrs.Get("email").String()),
				FirstName: attrs.Get("firstName").String(),
				LastName:  attrs.Get("lastName").String(),
				Company:   attrs.Get("company").String(),
			})
			return true
		})

		pageCount := int(doc.Get("meta.pagination.pageCount").Int())
		if page >= pageCount {
			break
		}
	}

	if s.Logger != nil {
		s.Logger.Debug("Strapi returned %d subscriber record(s)", len(out))
	}
	return out, nil
}
