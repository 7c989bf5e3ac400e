package providers

// CharsPerToken is the fixed ratio used to approximate token counts.
const CharsPerToken = 4

// Rates are per-token prices in USD.
type Rates struct {
	Input  float64
	Output float64
}

// PerMillion builds Rates from per-million-token prices.
func PerMillion(input, output float64) Rates {
	return Rates{Input: input / 1_000_000, Output: output / 1_000_000}
}

// Cost prices a call.
func (r Rates) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*r.Input + float64(outputTokens)*r.Output
}

// EstimateTokens approximates the token count of s, never below one.
func EstimateTokens(s string) int {
	n := len(s) / CharsPerToken
	if n < 1 {
		return 1
	}
	return n
}
