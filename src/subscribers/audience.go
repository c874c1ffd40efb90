package subscribers

import (
	"context"

	"ir-stock-service/src/logger"
	"ir-stock-service/src/models"
)

// MemberLister is implemented by mailchimp.Client.
type MemberLister interface {
	ListMembers(ctx context.Context, offset, count int) ([]models.MSubscriber, int, error)
}

// AudienceSource lists the subscribed members of the email platform audience.
type AudienceSource struct {
	Lister   MemberLister
	PageSize int
	Logger   *logger.Logger
}

func NewAudienceSource(lister MemberLister, pageSize int, log *logger.Logger) *AudienceSource {
	if pageSize <= 0 {
		pageSize = 500
	}
	return &AudienceSource{Lister: lister, PageSize: pageSize, Logger: log}
}

func (a *AudienceSource) Name() string {
	return "mailchimp"
}

// FetchSubscribers pages until total_items is reached or a page comes back empty.
func (a *AudienceSource) FetchSubscribers(ctx context.Context) ([]models.MSubscriber, error) {
	var out []models.MSubscriber
	offset := 0
	for {
		page, total, err := a.Lister.ListMembers(ctx, offset, a.PageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		offset += len(page)
		if len(page) == 0 || offset >= total {
			break
		}
	}
	return out, nil
}
