package llm

import (
	"log"

	"github.com/gezhip02/chat-english/internal/config"
)

// ModeMock forces the mock-only provider set (CHAT_MODE=MOCK).
const ModeMock = "MOCK"

// Builder constructs an adapter from its configuration block.
type Builder func(pc config.ProviderConfig, opts Options) Adapter

// Builders maps provider ids to constructors.
var Builders = map[string]Builder{
	config.ProviderOpenAI:      func(pc config.ProviderConfig, opts Options) Adapter { return NewOpenAI(pc, opts) },
	config.ProviderAnthropic:   func(pc config.ProviderConfig, opts Options) Adapter { return NewAnthropic(pc, opts) },
	config.ProviderDeepSeek:    func(pc config.ProviderConfig, opts Options) Adapter { return NewDeepSeek(pc, opts) },
	config.ProviderHuggingFace: func(pc config.ProviderConfig, opts Options) Adapter { return NewHuggingFace(pc, opts) },
}

// CanonicalOrder is the preference order used when the default provider is
// not usable.
var CanonicalOrder = []string{
	config.ProviderOpenAI,
	config.ProviderAnthropic,
	config.ProviderDeepSeek,
	config.ProviderHuggingFace,
}

// Build constructs adapters for every configured block that carries an API
// key, in canonical order. In mock mode nothing is built.
func Build(mode string, providers map[string]config.ProviderConfig, opts Options) []Adapter {
	if mode == ModeMock {
		log.Println("CHAT_MODE=MOCK detected, using mock provider only")
		return nil
	}

	for id := range providers {
		if _, ok := Builders[id]; !ok && id != config.ProviderMock {
			log.Printf("WARN: unknown provider %q in configuration, ignoring", id)
		}
	}

	var adapters []Adapter
	for _, id := range CanonicalOrder {
		pc, ok := providers[id]
		if !ok || pc.APIKey == "" {
			continue
		}
		adapters = append(adapters, Builders[id](pc, opts))
	}
	return adapters
}
