package scenario

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gezhip02/chat-english/internal/domain"
)

func TestLookupByIDAndTitle(t *testing.T) {
	s, ok := Lookup("coffee-shop")
	assert.True(t, ok)
	assert.Equal(t, "Coffee Shop Chat", s.Title)

	s, ok = Lookup("job interview")
	assert.True(t, ok)
	assert.Equal(t, domain.DifficultyIntermediate, s.Difficulty)

	_, ok = Lookup("space station")
	assert.False(t, ok)
}

func TestSystemPromptFallsBackToGeneric(t *testing.T) {
	assert.Contains(t, SystemPrompt("Coffee Shop Chat", domain.DifficultyBeginner), "friendly barista")
	assert.Equal(t, GenericSystemPrompt, SystemPrompt("Coffee Shop Chat", domain.DifficultyAdvanced))
	assert.Equal(t, GenericSystemPrompt, SystemPrompt("Unknown", domain.DifficultyBeginner))
}

func TestGreetingExactPairOnly(t *testing.T) {
	assert.Equal(t, "Hi there! Welcome to our coffee shop. What can I get for you today?",
		Greeting("coffee-shop", domain.DifficultyBeginner))
	assert.Equal(t, GenericGreeting, Greeting("Job Interview", domain.DifficultyBeginner))
	assert.NotEmpty(t, Greeting("", ""))
}

func TestByDifficulty(t *testing.T) {
	assert.Len(t, ByDifficulty(domain.DifficultyBeginner), 5)
	assert.Len(t, ByDifficulty(domain.DifficultyIntermediate), 1)
	assert.Len(t, ByDifficulty(domain.DifficultyAdvanced), 1)
}

func TestMockReplyKeywordMatch(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	got := MockReply("Coffee Shop Chat", "I'd like a COFFEE please", rng)
	assert.Equal(t, "Would you like to try our special blend today? It's from Colombia and has a wonderful aroma.", got)

	// "drink" and "cost" both appear: the earlier rule wins.
	got = MockReply("Coffee Shop Chat", "how much does a drink cost", rng)
	assert.Equal(t, mockRules["Coffee Shop Chat"][0].Reply, got)

	got = MockReply("Job Interview", "What about the salary?", rng)
	assert.Contains(t, got, "salary range")
}

func TestMockReplyGenericPool(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		got := MockReply("Coffee Shop Chat", "hello there", rng)
		assert.Contains(t, GenericReplies, got)
	}
	assert.Contains(t, GenericReplies, MockReply("Unknown", "coffee", nil))
}
