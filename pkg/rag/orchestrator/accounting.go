package orchestrator

import "docchat-be/pkg/llm"

// Pricing is USD per million tokens.
type Pricing struct {
	Input       float64
	CachedInput float64
	Output      float64
}

func DefaultPricing() Pricing {
	return Pricing{Input: 0.28, CachedInput: 0.028, Output: 0.42}
}

// Accounting is the resolved token usage and cost of one request.
type Accounting struct {
	PromptTokens     int
	CompletionTokens int
	CachedTokens     int
	TotalTokens      int
	CostUSD          float64
}

// Cost prices usage. Cached prompt tokens are billed at the cached rate and
// are not billed again as regular input.
func (p Pricing) Cost(u llm.Usage) float64 {
	cached := u.CachedTokens
	if cached > u.PromptTokens {
		cached = u.PromptTokens
	}
	uncached := u.PromptTokens - cached
	return float64(uncached)*p.Input/1e6 +
		float64(cached)*p.CachedInput/1e6 +
		float64(u.CompletionTokens)*p.Output/1e6
}

func (p Pricing) account(u llm.Usage) Accounting {
	return Accounting{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		CachedTokens:     u.CachedTokens,
		TotalTokens:      u.PromptTokens + u.CompletionTokens,
		CostUSD:          p.Cost(u),
	}
}
