package observability

import (
	"strconv"
	"strings"

	"github.com/Conceptual-Machines/voxel-architect/internal/llm"
)

const (
	tokensPerKilo       = 1000.0
	costFormatPrecision = 6
)

// ModelPricing contains pricing information per 1K tokens
type ModelPricing struct {
	InputPricePer1K  float64 // Price per 1K input tokens in USD
	OutputPricePer1K float64 // Price per 1K output tokens in USD
}

// PricingTable contains pricing for known models. Lookups match the longest
// prefix, so dated model versions share their family's price.
var PricingTable = map[string]ModelPricing{
	"gemini-2.0-flash":      {InputPricePer1K: 0.0001, OutputPricePer1K: 0.0004},
	"gemini-2.0-flash-lite": {InputPricePer1K: 0.000075, OutputPricePer1K: 0.0003},
	"gemini-2.5-flash":      {InputPricePer1K: 0.0003, OutputPricePer1K: 0.0025},
	"gemini-2.5-pro":        {InputPricePer1K: 0.00125, OutputPricePer1K: 0.01},
	"gpt-4.1":               {InputPricePer1K: 0.002, OutputPricePer1K: 0.008},
	"gpt-4.1-mini":          {InputPricePer1K: 0.0004, OutputPricePer1K: 0.0016},
	"gpt-4o":                {InputPricePer1K: 0.005, OutputPricePer1K: 0.015},
	"gpt-4o-mini":           {InputPricePer1K: 0.00015, OutputPricePer1K: 0.0006},
}

// PricingFor returns the pricing of the longest matching model prefix.
func PricingFor(model string) (ModelPricing, bool) {
	best, found := "", false
	for name := range PricingTable {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best, found = name, true
		}
	}
	return PricingTable[best], found
}

// EstimateCost calculates the cost in USD of one call. Unknown models cost 0.
func EstimateCost(model string, usage llm.Usage) float64 {
	pricing, ok := PricingFor(model)
	if !ok {
		return 0
	}
	inputCost := (float64(usage.InputTokens) / tokensPerKilo) * pricing.InputPricePer1K
	outputCost := (float64(usage.OutputTokens) / tokensPerKilo) * pricing.OutputPricePer1K
	return inputCost + outputCost
}

// FormatCost formats a cost value as a USD string
func FormatCost(cost float64) string {
	return "$" + strconv.FormatFloat(cost, 'f', costFormatPrecision, 64)
}
