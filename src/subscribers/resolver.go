package subscribers

import (
	"context"
	"regexp"
	"strings"

	"ir-stock-service/src/helpers"
	"ir-stock-service/src/interfaces"
	"ir-stock-service/src/logger"
	"ir-stock-service/src/models"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail reports whether email is non-empty and syntactically plausible.
func IsValidEmail(email string) bool {
	return email != "" && emailPattern.MatchString(email)
}

// FilterValid drops subscribers without a usable email. Order is preserved.
func FilterValid(subs []models.MSubscriber) []models.MSubscriber {
	out := make([]models.MSubscriber, 0, len(subs))
	for _, s := range subs {
		s.Email = strings.TrimSpace(s.Email)
		if IsValidEmail(s.Email) {
			out = append(out, s)
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// Resolver asks the primary source first and falls back when it fails or has no
// valid subscribers. Each source is retried with the policy.
type Resolver struct {
	Primary  interfaces.ISubscriberSource
	Fallback interfaces.ISubscriberSource
	Retry    helpers.RetryPolicy
	Logger   *logger.Logger
}

func NewResolver(primary, fallback interfaces.ISubscriberSource, retry helpers.RetryPolicy, log *logger.Logger) *Resolver {
	return &Resolver{Primary: primary, Fallback: fallback, Retry: retry, Logger: log}
}

// Resolve returns the valid subscribers and the name of the source that supplied
// them. An empty result with a nil error means neither source had anyone.
func (r *Resolver) Resolve(ctx context.Context) ([]models.MSubscriber, string, error) {
	if r.Primary != nil {
		subs, err := r.fetch(ctx, r.Primary)
		switch {
		case err != nil:
			r.warn("Subscriber source %s failed, trying fallback: %v", r.Primary.Name(), err)
		case len(subs) > 0:
			return subs, r.Primary.Name(), nil
		default:
			r.warn("Subscriber source %s returned no valid subscribers, trying fallback", r.Primary.Name())
		}
	}

	if r.Fallback == nil {
		return nil, "", nil
	}
	subs, err := r.fetch(ctx, r.Fallback)
	if err != nil {
		return nil, r.Fallback.Name(), err
	}
	return subs, r.Fallback.Name(), nil
}

func (r *Resolver) fetch(ctx context.Context, src interfaces.ISubscriberSource) ([]models.MSubscriber, error) {
	subs, err := helpers.Retry(ctx, r.Retry, "fetch subscribers from "+src.Name(), src.FetchSubscribers)
	if err != nil {
		return nil, err
	}
	return FilterValid(subs), nil
}

func (r *Resolver) warn(format string, args ...interface{}) {
	if r.Logger != nil {
		r.Logger.Warning(format, args...)
	}
}
