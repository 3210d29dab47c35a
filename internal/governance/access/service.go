package access

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aiox-platform/governor/internal/billing"
	"github.com/aiox-platform/governor/internal/config"
	"github.com/aiox-platform/governor/internal/metrics"
)

// TierResolver reports a user's subscription tier.
type TierResolver interface {
	SubscriptionTier(ctx context.Context, userID uuid.UUID) (billing.Tier, error)
}

// UsageStore aggregates the usage ledger.
type UsageStore interface {
	CountSince(ctx context.Context, userID uuid.UUID, types []RequestType, since time.Time) (int64, error)
	TotalsSince(ctx context.Context, userID uuid.UUID, since time.Time) (tokens, costCents int64, err error)
}

const checkFailedMessage = "We could not verify your AI access right now. Please try again in a moment."

// Service decides whether a metered request may proceed.
type Service struct {
	tiers TierResolver
	usage UsageStore
	cfg   config.GovernanceConfig
	now   func() time.Time
}

// NewService creates a new access Service.
func NewService(tiers TierResolver, usage UsageStore, cfg config.GovernanceConfig) *Service {
	return &Service{
		tiers: tiers,
		usage: usage,
		cfg:   cfg,
		now:   time.Now,
	}
}

// DecideAccess never returns an error: failures to resolve the tier or
// aggregate usage produce a denied decision with CodeCheckFailed.
func (s *Service) DecideAccess(ctx context.Context, userID uuid.UUID, requestType string) Decision {
	rt := ParseRequestType(requestType)
	limits := Limits{
		RequestType: rt,
		WindowStart: MonthStart(s.now()),
	}

	d, err := s.decide(ctx, userID, &limits)
	if err != nil {
		slog.Warn("access: check failed, denying", "user_id", userID, "request_type", rt, "error", err)
		d = Decision{Allowed: false, Code: CodeCheckFailed, Message: checkFailedMessage, Limits: limits}
	}

	metrics.AccessDecisionsTotal.WithLabelValues(string(limits.Tier), string(rt), string(d.Code)).Inc()
	return d
}

func (s *Service) decide(ctx context.Context, userID uuid.UUID, limits *Limits) (Decision, error) {
	tier, err := s.tiers.SubscriptionTier(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	limits.Tier = tier

	rules := freeRules
	if tier.IsPro() {
		rules = proRules
		limits.CostCapCents = s.cfg.ProCostCapCents
		limits.FeatureLimit = s.proFeatureLimit(limits.RequestType)
	} else {
		msgLimit, tokenQuota := s.cfg.FreeMessageLimit, s.cfg.FreeTokenQuota
		limits.MessageLimit = &msgLimit
		limits.TokenQuota = &tokenQuota
		limits.FeatureLimit = s.freeFeatureLimit(limits.RequestType)
	}

	if err := s.aggregate(ctx, userID, limits); err != nil {
		return Decision{}, err
	}

	if r, denied := evaluate(rules, limits); denied {
		return Decision{Allowed: false, Code: r.code, Message: r.message(limits), Limits: *limits}, nil
	}

	if !tier.IsPro() {
		remaining := max(0, int64(*limits.MessageLimit)-limits.MonthlyMessageCount)
		r := int(remaining)
		limits.RemainingMessages = &r
	}
	return Decision{Allowed: true, Limits: *limits}, nil
}

// aggregate runs the usage reads concurrently. The per-feature count is only
// queried when a non-zero limit applies to the request type.
func (s *Service) aggregate(ctx context.Context, userID uuid.UUID, limits *Limits) error {
	g, gctx := errgroup.WithContext(ctx)
	since := limits.WindowStart

	g.Go(func() error {
		n, err := s.usage.CountSince(gctx, userID, messageTypes, since)
		limits.MonthlyMessageCount = n
		return err
	})

	g.Go(func() error {
		tokens, cost, err := s.usage.TotalsSince(gctx, userID, since)
		limits.MonthlyTokenUsage = tokens
		limits.MonthlyCostUsageCents = cost
		return err
	})

	if limits.RequestType.HasFeatureCounter() && limits.FeatureLimit != nil && *limits.FeatureLimit != 0 {
		g.Go(func() error {
			n, err := s.usage.CountSince(gctx, userID, []RequestType{limits.RequestType}, since)
			limits.MonthlyFeatureCount = &n
			return err
		})
	}

	return g.Wait()
}

func (s *Service) freeFeatureLimit(rt RequestType) *int {
	var limit int
	switch rt {
	case RequestImageGenerate:
		limit = s.cfg.FreeImageLimit
	case RequestTranscribe:
		limit = s.cfg.FreeTranscribeLimit
	default:
		return nil
	}
	return &limit
}

func (s *Service) proFeatureLimit(rt RequestType) *int {
	switch rt {
	case RequestImageGenerate:
		return s.cfg.ProImageLimit
	case RequestTranscribe:
		return s.cfg.ProTranscribeLimit
	default:
		return nil
	}
}
