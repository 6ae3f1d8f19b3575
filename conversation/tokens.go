package conversation

// Estimator approximates the token count of a piece of text. The gateway
// never needs exact counts; estimates only feed the history trim budget.
type Estimator func(text string) int

// EstimateTokens is the default Estimator: ceil(byteLength/4). Roughly four
// bytes of English text per token. Swap in a real tokenizer through
// WithEstimator when accuracy matters.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
