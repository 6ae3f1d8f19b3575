package conversation

// trim applies the two history limits after an append, oldest-first:
//
//  1. While cumulative token estimates exceed maxTokens and more than two
//     messages remain, drop the oldest message.
//  2. If the count still exceeds maxMessages, keep only the most recent
//     maxMessages.
//
// The two-message floor guarantees the most recent user/assistant pair
// survives even when a single message exceeds the whole budget.
func trim(history []Message, maxTokens, maxMessages int) []Message {
	total := 0
	for _, msg := range history {
		total += msg.TokenCount
	}

	for total > maxTokens && len(history) > 2 {
		total -= history[0].TokenCount
		history = history[1:]
	}

	if len(history) > maxMessages {
		history = history[len(history)-maxMessages:]
	}

	return history
}
