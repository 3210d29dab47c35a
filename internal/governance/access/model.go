package access

import (
	"time"

	"github.com/google/uuid"

	"github.com/aiox-platform/governor/internal/billing"
)

// RequestType names a metered capability.
type RequestType string

const (
	RequestChat          RequestType = "chat"
	RequestChatStream    RequestType = "chat-stream"
	RequestSuggestions   RequestType = "suggestions"
	RequestMemoryExtract RequestType = "memory-extract"
	RequestSummary       RequestType = "summary"
	RequestImageGenerate RequestType = "image-generate"
	RequestTranscribe    RequestType = "transcribe"
)

var requestTypes = map[RequestType]struct{}{
	RequestChat:          {},
	RequestChatStream:    {},
	RequestSuggestions:   {},
	RequestMemoryExtract: {},
	RequestSummary:       {},
	RequestImageGenerate: {},
	RequestTranscribe:    {},
}

// messageTypes are the request types counted against the message limit.
var messageTypes = []RequestType{RequestChat, RequestChatStream}

// ParseRequestType maps s to a known request type, falling back to chat.
func ParseRequestType(s string) RequestType {
	rt := RequestType(s)
	if _, ok := requestTypes[rt]; ok {
		return rt
	}
	return RequestChat
}

// HasFeatureCounter reports whether the type is metered by its own monthly count.
func (rt RequestType) HasFeatureCounter() bool {
	return rt == RequestImageGenerate || rt == RequestTranscribe
}

// Code is a machine-readable denial reason.
type Code string

const (
	CodeFreeMessageLimit   Code = "FREE_TIER_MESSAGE_LIMIT_REACHED"
	CodeFreeTokenQuota     Code = "FREE_TIER_TOKEN_QUOTA_REACHED"
	CodeFreeImageLimit     Code = "FREE_TIER_IMAGE_LIMIT_REACHED"
	CodeFreeTranscribe     Code = "FREE_TIER_TRANSCRIBE_LIMIT_REACHED"
	CodeProCostCap         Code = "PRO_TIER_COST_CAP_REACHED"
	CodeProImageLimit      Code = "PRO_TIER_IMAGE_LIMIT_REACHED"
	CodeProTranscribeLimit Code = "PRO_TIER_TRANSCRIBE_LIMIT_REACHED"
	CodeCheckFailed        Code = "AI_ACCESS_CHECK_FAILED"
)

// Decision is the outcome of an access check. A denied decision always
// carries a Code and an allowed one never does.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Code    Code   `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Limits  Limits `json:"limits"`
}

// Limits is the snapshot of counters and quotas a decision was made from.
type Limits struct {
	Tier        billing.Tier `json:"tier,omitempty"`
	RequestType RequestType  `json:"request_type"`
	WindowStart time.Time    `json:"window_start"`

	MonthlyMessageCount   int64  `json:"monthly_message_count"`
	MonthlyTokenUsage     int64  `json:"monthly_token_usage"`
	MonthlyCostUsageCents int64  `json:"monthly_cost_usage_cents"`
	MonthlyFeatureCount   *int64 `json:"monthly_feature_count,omitempty"`

	MessageLimit *int   `json:"message_limit,omitempty"`
	TokenQuota   *int64 `json:"token_quota,omitempty"`
	CostCapCents *int64 `json:"cost_cap_cents,omitempty"`
	FeatureLimit *int   `json:"feature_limit,omitempty"`

	RemainingMessages *int `json:"remaining_messages,omitempty"`
}

func (l *Limits) featureUsed() int64 {
	if l.MonthlyFeatureCount == nil {
		return 0
	}
	return *l.MonthlyFeatureCount
}

// Event is one metered AI request.
type Event struct {
	ID             uuid.UUID   `json:"id"`
	UserID         uuid.UUID   `json:"user_id"`
	RequestType    RequestType `json:"request_type"`
	TotalTokens    int64       `json:"total_tokens"`
	TotalCostCents int64       `json:"total_cost_cents"`
	CreatedAt      time.Time   `json:"created_at"`
}
