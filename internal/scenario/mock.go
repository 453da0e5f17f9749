package scenario

import (
	"math/rand"
	"strings"
)

// Rule maps any of a set of keywords to a canned reply.
type Rule struct {
	Keywords []string
	Reply    string
}

// mockRules are evaluated in order per scenario title; first match wins.
var mockRules = map[string][]Rule{
	"Coffee Shop Chat": {
		{Keywords: []string{"coffee", "drink"}, Reply: "Would you like to try our special blend today? It's from Colombia and has a wonderful aroma."},
		{Keywords: []string{"food", "eat"}, Reply: "Our croissants are freshly baked this morning. Would you like one with your drink?"},
		{Keywords: []string{"price", "cost", "how much"}, Reply: "A regular coffee is $3.50, and our special blend is $4.25. Anything else you'd like to know?"},
	},
	"Job Interview": {
		{Keywords: []string{"experience", "work"}, Reply: "That's interesting. Could you tell me more about your specific responsibilities in your previous role?"},
		{Keywords: []string{"salary", "pay"}, Reply: "The salary range for this position is competitive and based on experience. We also offer excellent benefits including health insurance and retirement plans."},
		{Keywords: []string{"weakness", "improve"}, Reply: "That's a thoughtful reflection. How have you been working to improve in that area?"},
	},
	"Business Negotiation": {
		{Keywords: []string{"offer", "deal"}, Reply: "I understand your position. However, we need to ensure this agreement benefits both parties. What if we adjust the terms to include..."},
		{Keywords: []string{"price", "cost"}, Reply: "While price is important, we should also consider the value of the long-term partnership. We can offer additional services that might offset the cost difference."},
		{Keywords: []string{"deadline", "time"}, Reply: "We can meet your timeline, but we'll need to prioritize certain aspects of the project. Which components are most critical for the initial phase?"},
	},
}

// GenericReplies is the pool used when no rule matches.
var GenericReplies = []string{
	"That's an interesting point. Could you elaborate a bit more?",
	"I see what you mean. What are your thoughts on this?",
	"Thank you for sharing that. Let's discuss this further.",
	"I appreciate your perspective. How does this relate to your goals?",
	"That's helpful to know. Is there anything specific you'd like to focus on?",
	"I understand. Would you like to explore this topic in more depth?",
	"Good point. How do you feel about trying a different approach?",
	"I see. What aspects of this are most important to you?",
	"Interesting. Have you considered alternative options as well?",
	"Thanks for explaining. Let's move forward with this conversation.",
}

// Rules returns the ordered keyword rules for a scenario.
func Rules(name string) []Rule {
	return mockRules[Title(name)]
}

// MockReply derives a canned reply from the scenario and the latest user
// utterance. rng picks from GenericReplies when no rule matches.
func MockReply(name, utterance string, rng *rand.Rand) string {
	text := strings.ToLower(utterance)
	for _, r := range Rules(name) {
		for _, kw := range r.Keywords {
			if strings.Contains(text, kw) {
				return r.Reply
			}
		}
	}
	if rng == nil {
		return GenericReplies[rand.Intn(len(GenericReplies))]
	}
	return GenericReplies[rng.Intn(len(GenericReplies))]
}
