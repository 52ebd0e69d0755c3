package costs

import (
	"math"
	"testing"

	"github.com/grupovorp/adpilot/internal/providers"
)

func TestCost(t *testing.T) {
	p := DefaultPricing()
	usd, brl := p.Cost(providers.Usage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000})

	if math.Abs(usd-0.750) > 1e-9 {
		t.Errorf("usd = %f, want 0.750", usd)
	}
	if math.Abs(brl-4.575) > 1e-9 {
		t.Errorf("brl = %f, want 4.575", brl)
	}
}

func TestCostZeroUsage(t *testing.T) {
	usd, brl := DefaultPricing().Cost(providers.Usage{})
	if usd != 0 || brl != 0 {
		t.Errorf("usd = %f, brl = %f, want zero", usd, brl)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens("como foram as campanhas?"); got != 8 {
		t.Errorf("EstimateTokens = %d, want 8", got)
	}
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("EstimateTokens(empty) = %d, want 0", got)
	}
}
