// Package costs estimates what an agent run cost in tokens and money.
package costs

import "github.com/grupovorp/adpilot/internal/providers"

// Pricing is the per-million-token price sheet, in USD.
type Pricing struct {
	InputPer1M  float64
	OutputPer1M float64
	USDToBRL    float64
}

// DefaultPricing reflects gpt-4o-mini list prices and a fixed exchange rate.
func DefaultPricing() Pricing {
	return Pricing{
		InputPer1M:  0.150,
		OutputPer1M: 0.600,
		USDToBRL:    6.10,
	}
}

// Cost converts usage into USD and BRL.
func (p Pricing) Cost(u providers.Usage) (usd, brl float64) {
	usd = float64(u.PromptTokens)/1_000_000*p.InputPer1M +
		float64(u.CompletionTokens)/1_000_000*p.OutputPer1M
	return usd, usd * p.USDToBRL
}

// EstimateTokens approximates the token count of Portuguese text. The rule
// of thumb is one token per three characters, more conservative than the
// four-character heuristic for English.
func EstimateTokens(text string) int {
	return len(text) / 3
}
