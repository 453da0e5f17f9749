// Package scenario holds the practice scenarios and the prompt, greeting and
// canned-reply tables keyed by them.
package scenario

import (
	"strings"

	"github.com/gezhip02/chat-english/internal/domain"
)

// GenericSystemPrompt is used when no prompt is registered for a
// (scenario, difficulty) pair.
const GenericSystemPrompt = "You are a friendly English teacher having a natural conversation. " +
	"Respond naturally as if in a real conversation. Keep responses concise and conversational. " +
	"Engage the student in dialogue that helps improve their English speaking skills."

// GenericGreeting is returned when no greeting is registered for a
// (scenario, difficulty) pair.
const GenericGreeting = "Hi there! I'm glad you're here to practice English with me. What would you like to talk about today?"

type key struct {
	title      string
	difficulty domain.Difficulty
}

var scenarios = []domain.Scenario{
	{
		ID:          "weather",
		Title:       "Weather Talk",
		Description: "Practice talking about weather, seasons, and temperature",
		Difficulty:  domain.DifficultyBeginner,
		ExampleQuestions: []string{
			"How's the weather today?",
			"What's your favorite season?",
			"Do you like rainy days?",
		},
	},
	{
		ID:          "food",
		Title:       "Food & Dining",
		Description: "Talk about food preferences and dining experiences",
		Difficulty:  domain.DifficultyBeginner,
		ExampleQuestions: []string{
			"What's your favorite food?",
			"How often do you cook?",
			"What did you have for breakfast?",
		},
	},
	{
		ID:          "colors",
		Title:       "Colors & Preferences",
		Description: "Express preferences and describe things using colors",
		Difficulty:  domain.DifficultyBeginner,
		ExampleQuestions: []string{
			"What's your favorite color?",
			"Why do you like this color?",
			"What colors do you usually wear?",
		},
	},
	{
		ID:          "hobbies",
		Title:       "Hobbies & Interests",
		Description: "Share your hobbies and talk about free time activities",
		Difficulty:  domain.DifficultyBeginner,
		ExampleQuestions: []string{
			"What do you like to do in your free time?",
			"How long have you had this hobby?",
			"Why do you enjoy this activity?",
		},
	},
	{
		ID:          "coffee-shop",
		Title:       "Coffee Shop Chat",
		Description: "Practice ordering and making small talk at a coffee shop",
		Difficulty:  domain.DifficultyBeginner,
		ExampleQuestions: []string{
			"Can I get a medium latte, please?",
			"What's your most popular drink?",
			"Do you have any food recommendations?",
		},
	},
	{
		ID:          "job-interview",
		Title:       "Job Interview",
		Description: "Practice common job interview questions and responses",
		Difficulty:  domain.DifficultyIntermediate,
		ExampleQuestions: []string{
			"Tell me about yourself",
			"What are your strengths and weaknesses?",
			"Where do you see yourself in 5 years?",
		},
	},
	{
		ID:          "business-negotiation",
		Title:       "Business Negotiation",
		Description: "Practice negotiating deals and contracts in English",
		Difficulty:  domain.DifficultyAdvanced,
		ExampleQuestions: []string{
			"Could we discuss the terms of the agreement?",
			"What's your best offer?",
			"Let's talk about the delivery timeline",
		},
	},
}

var systemPrompts = map[key]string{
	{"Weather Talk", domain.DifficultyBeginner}: "You are a friendly neighbour chatting about the weather. " +
		"Use simple words and short sentences, and ask easy questions about seasons and temperature.",
	{"Food & Dining", domain.DifficultyBeginner}: "You are a friendly waiter at a casual restaurant. " +
		"Use simple words, talk about favourite dishes and help the guest order.",
	{"Colors & Preferences", domain.DifficultyBeginner}: "You are a cheerful shop assistant in a clothing store. " +
		"Use simple words and ask the customer about the colors they like and why.",
	{"Hobbies & Interests", domain.DifficultyBeginner}: "You are a new friend meeting someone at a community club. " +
		"Use simple words and ask about hobbies and free time activities.",
	{"Coffee Shop Chat", domain.DifficultyBeginner}: "You are a friendly barista at a coffee shop. " +
		"Engage in natural conversation, take orders, and make small talk.",
	{"Job Interview", domain.DifficultyIntermediate}: "You are a professional hiring manager conducting a job interview. " +
		"Ask relevant questions and provide constructive feedback.",
	{"Business Negotiation", domain.DifficultyAdvanced}: "You are a business professional in a negotiation meeting. " +
		"Discuss terms, make proposals, and work towards agreements.",
}

var greetings = map[key]string{
	{"Weather Talk", domain.DifficultyBeginner}:         "Hello! It's a lovely day today, isn't it? What's the weather like where you are?",
	{"Food & Dining", domain.DifficultyBeginner}:        "Good evening and welcome! Here is the menu. Do you know what you'd like to eat?",
	{"Colors & Preferences", domain.DifficultyBeginner}: "Hi! Welcome to our store. What's your favorite color?",
	{"Hobbies & Interests", domain.DifficultyBeginner}:  "Hi, nice to meet you! What do you like to do in your free time?",
	{"Coffee Shop Chat", domain.DifficultyBeginner}:     "Hi there! Welcome to our coffee shop. What can I get for you today?",
	{"Job Interview", domain.DifficultyIntermediate}:    "Good morning, thank you for coming in today. Could you start by telling me a little about yourself?",
	{"Business Negotiation", domain.DifficultyAdvanced}: "Thank you for meeting with us. Shall we begin by reviewing the main terms of the proposal?",
}

// All returns the scenario list in display order.
func All() []domain.Scenario {
	out := make([]domain.Scenario, len(scenarios))
	copy(out, scenarios)
	return out
}

// ByDifficulty returns the scenarios tuned for d.
func ByDifficulty(d domain.Difficulty) []domain.Scenario {
	var out []domain.Scenario
	for _, s := range scenarios {
		if s.Difficulty == d {
			out = append(out, s)
		}
	}
	return out
}

// Lookup finds a scenario by id or title, case-insensitively.
func Lookup(name string) (domain.Scenario, bool) {
	name = strings.TrimSpace(name)
	for _, s := range scenarios {
		if strings.EqualFold(s.ID, name) || strings.EqualFold(s.Title, name) {
			return s, true
		}
	}
	return domain.Scenario{}, false
}

// Title normalizes an id or title to the scenario title. Unknown names are
// returned unchanged so that free-form scenarios fall through to the generic
// tables.
func Title(name string) string {
	if s, ok := Lookup(name); ok {
		return s.Title
	}
	return name
}

// SystemPrompt returns the system instruction for the exact
// (scenario, difficulty) pair, or GenericSystemPrompt.
func SystemPrompt(name string, d domain.Difficulty) string {
	if p, ok := systemPrompts[key{Title(name), d}]; ok {
		return p
	}
	return GenericSystemPrompt
}

// Greeting returns the opening line for the exact (scenario, difficulty)
// pair, or GenericGreeting.
func Greeting(name string, d domain.Difficulty) string {
	if g, ok := greetings[key{Title(name), d}]; ok {
		return g
	}
	return GenericGreeting
}
