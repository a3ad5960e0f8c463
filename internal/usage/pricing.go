package usage

import "strings"

// ModelPricing defines the cost per million tokens for a model.
type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// PricingTable maps Claude model name patterns to list prices in USD per
// million tokens.
var PricingTable = map[string]ModelPricing{
	"claude-opus-4-5":   {15.00, 75.00},
	"claude-opus-4":     {15.00, 75.00},
	"claude-sonnet-4-5": {3.00, 15.00},
	"claude-sonnet-4":   {3.00, 15.00},
	"claude-haiku-4-5":  {0.80, 4.00},
	"claude-3-7-sonnet": {3.00, 15.00},
	"claude-3-5-sonnet": {3.00, 15.00},
	"claude-3-5-haiku":  {0.80, 4.00},
	"claude-3-opus":     {15.00, 75.00},
	"claude-3-sonnet":   {3.00, 15.00},
	"claude-3-haiku":    {0.25, 1.25},
}

// GetModelPricing returns the pricing for model. An exact match wins;
// otherwise the longest table pattern contained in the name is used.
func GetModelPricing(model string) (ModelPricing, bool) {
	pattern, ok := matchPattern(model)
	if !ok {
		return ModelPricing{}, false
	}
	return PricingTable[pattern], true
}

// ModelLabel maps a client model name onto its pricing table pattern so metric
// labels stay bounded. Names outside the table become "other".
func ModelLabel(model string) string {
	if pattern, ok := matchPattern(model); ok {
		return pattern
	}
	return "other"
}

func matchPattern(model string) (string, bool) {
	m := strings.ToLower(strings.TrimSpace(model))
	if i := strings.LastIndex(m, "/"); i >= 0 {
		m = m[i+1:]
	}
	if _, ok := PricingTable[m]; ok {
		return m, true
	}

	best := ""
	for pattern := range PricingTable {
		if strings.Contains(m, pattern) && len(pattern) > len(best) {
			best = pattern
		}
	}
	return best, best != ""
}

// CalculateCost calculates the cost for given token usage.
func CalculateCost(pricing ModelPricing, inputTokens, outputTokens int64) float64 {
	inputCost := float64(inputTokens) * pricing.InputPerMillion / 1_000_000
	outputCost := float64(outputTokens) * pricing.OutputPerMillion / 1_000_000
	return inputCost + outputCost
}

// EstimateCost returns the list-price cost of a usage record.
func EstimateCost(record Record) (float64, bool) {
	pricing, ok := GetModelPricing(record.Model)
	if !ok {
		return 0, false
	}
	return CalculateCost(pricing, record.InputTokens, record.OutputTokens), true
}
