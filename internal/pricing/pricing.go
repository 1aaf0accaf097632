// Package pricing holds a static per-model price registry used to turn
// token usage into a cost estimate.
package pricing

// ModelPricing is USD per million tokens, split by direction.
type ModelPricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

var registry = map[string]ModelPricing{
	// OpenAI
	"gpt-4o-mini": {InputPerMTok: 0.15, OutputPerMTok: 0.60},
	"gpt-4o":      {InputPerMTok: 2.50, OutputPerMTok: 10.00},

	// Anthropic
	"claude-sonnet-4-20250514": {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-sonnet-4":          {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-haiku-4-5":         {InputPerMTok: 1.00, OutputPerMTok: 5.00},

	// Gemini
	"gemini-3-flash-preview": {InputPerMTok: 0.30, OutputPerMTok: 2.50},
	"gemini-2.5-flash":       {InputPerMTok: 0.30, OutputPerMTok: 2.50},
}

// Lookup returns the pricing for a model, if known.
func Lookup(model string) (ModelPricing, bool) {
	p, ok := registry[model]
	return p, ok
}

// Estimate calculates the USD cost of an invocation. The second return
// value is false when the model is unknown; callers fall back to a
// blended estimate.
func Estimate(model string, inputTokens, outputTokens int) (float64, bool) {
	p, ok := registry[model]
	if !ok {
		return 0, false
	}
	cost := float64(inputTokens)/1_000_000*p.InputPerMTok +
		float64(outputTokens)/1_000_000*p.OutputPerMTok
	return cost, true
}

// BlendedEstimate prices a combined token count assuming a 70/30
// input/output split at Sonnet-class rates. Used only when per-direction
// usage or model pricing is unavailable.
func BlendedEstimate(totalTokens int) float64 {
	const (
		inputPerTok  = 3.00 / 1_000_000
		outputPerTok = 15.00 / 1_000_000
	)
	input := float64(totalTokens) * 0.7
	output := float64(totalTokens) * 0.3
	return input*inputPerTok + output*outputPerTok
}
