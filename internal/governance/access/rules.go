package access

import "fmt"

// rule is one denial check. Rules are evaluated in slice order and the first
// one that denies wins.
type rule struct {
	code    Code
	denies  func(l *Limits) bool
	message func(l *Limits) string
}

func evaluate(rules []rule, l *Limits) (rule, bool) {
	for _, r := range rules {
		if r.denies(l) {
			return r, true
		}
	}
	return rule{}, false
}

var freeRules = []rule{
	{
		code: CodeFreeMessageLimit,
		denies: func(l *Limits) bool {
			return l.MessageLimit != nil && l.MonthlyMessageCount >= int64(*l.MessageLimit)
		},
		message: func(l *Limits) string {
			return fmt.Sprintf("You have used all %d free messages this month. Upgrade to Pro for unlimited messages.", *l.MessageLimit)
		},
	},
	{
		code: CodeFreeTokenQuota,
		denies: func(l *Limits) bool {
			return l.TokenQuota != nil && l.MonthlyTokenUsage >= *l.TokenQuota
		},
		message: func(l *Limits) string {
			return fmt.Sprintf("You have used your free allowance of %d tokens this month. Upgrade to Pro to keep going.", *l.TokenQuota)
		},
	},
	freeFeatureRule(RequestImageGenerate, CodeFreeImageLimit, "image generations", "Image generation"),
	freeFeatureRule(RequestTranscribe, CodeFreeTranscribe, "transcriptions", "Transcription"),
}

// freeFeatureRule denies when the free limit is zero or already used up.
func freeFeatureRule(rt RequestType, code Code, plural, title string) rule {
	return rule{
		code: code,
		denies: func(l *Limits) bool {
			if l.RequestType != rt || l.FeatureLimit == nil {
				return false
			}
			return *l.FeatureLimit == 0 || l.featureUsed() >= int64(*l.FeatureLimit)
		},
		message: func(l *Limits) string {
			if *l.FeatureLimit == 0 {
				return title + " is available on the Pro plan. Upgrade to unlock it."
			}
			return fmt.Sprintf("You have used all %d free %s this month. Upgrade to Pro for more.", *l.FeatureLimit, plural)
		},
	}
}

var proRules = []rule{
	{
		code: CodeProCostCap,
		denies: func(l *Limits) bool {
			return l.CostCapCents != nil && l.MonthlyCostUsageCents >= *l.CostCapCents
		},
		message: func(l *Limits) string {
			return fmt.Sprintf("Your monthly usage cap has been reached. It resets on %s.",
				NextMonthStart(l.WindowStart).Format("January 2, 2006"))
		},
	},
	proFeatureRule(RequestImageGenerate, CodeProImageLimit, "image generations", "Image generation"),
	proFeatureRule(RequestTranscribe, CodeProTranscribeLimit, "transcriptions", "Transcription"),
}

// proFeatureRule only applies when a Pro limit is configured. A limit of zero
// means the feature is switched off for the plan.
func proFeatureRule(rt RequestType, code Code, plural, title string) rule {
	return rule{
		code: code,
		denies: func(l *Limits) bool {
			if l.RequestType != rt || l.FeatureLimit == nil {
				return false
			}
			return l.featureUsed() >= int64(*l.FeatureLimit)
		},
		message: func(l *Limits) string {
			if *l.FeatureLimit == 0 {
				return title + " is currently disabled for your plan."
			}
			return fmt.Sprintf("You have reached your monthly limit of %d %s.", *l.FeatureLimit, plural)
		},
	}
}
