package config

import (
	"os"

	"researchnerd/internal/retrievers"
)

// ProbeResult reports readiness for one enabled retriever or provider.
// Missing credentials do not disable anything; a runtime task proceeds
// with whatever retrievers are usable.
type ProbeResult struct {
	Name        string
	Ready       bool
	MissingKeys []string
}

// llmKeyEnvs maps llm providers to their credential env vars.
var llmKeyEnvs = map[string][]string{
	"openai":       {"OPENAI_API_KEY"},
	"groq":         {"GROQ_API_KEY"},
	"openrouter":   {"OPENROUTER_API_KEY"},
	"google_genai": {"GOOGLE_API_KEY"},
	"gemini":       {"GOOGLE_API_KEY"},
	"google":       {"GOOGLE_API_KEY"},
}

// Probe checks every enabled retriever and LLM provider for the
// credentials it needs.
func (c *Config) Probe() []ProbeResult {
	var results []ProbeResult

	for _, name := range c.Retrievers {
		if retrievers.IsMCP(name) {
			// Server configs may arrive per task, so the probe reports MCP
			// as ready without looking for any server config.
			results = append(results, ProbeResult{Name: "retriever:" + name, Ready: true})
			continue
		}
		keys := retrievers.CredentialKeys[name]
		missing := missingEnv(keys)
		results = append(results, ProbeResult{
			Name:        "retriever:" + name,
			Ready:       len(missing) == 0,
			MissingKeys: missing,
		})
	}

	seen := make(map[string]bool)
	for _, spec := range []string{c.FastLLM, c.SmartLLM, c.StrategicLLM} {
		provider, _, ok := cutProvider(spec)
		if !ok || seen[provider] {
			continue
		}
		seen[provider] = true
		missing := missingEnv(llmKeyEnvs[provider])
		results = append(results, ProbeResult{
			Name:        "llm:" + provider,
			Ready:       len(missing) == 0,
			MissingKeys: missing,
		})
	}

	if provider, _ := c.EmbeddingProvider(); provider != "" && provider != "ollama" && !seen[provider] {
		missing := missingEnv(llmKeyEnvs[provider])
		results = append(results, ProbeResult{
			Name:        "embedding:" + provider,
			Ready:       len(missing) == 0,
			MissingKeys: missing,
		})
	}

	return results
}

func cutProvider(spec string) (string, string, bool) {
	for i := 0; i < len(spec); i++ {
		if spec[i] == ':' {
			return spec[:i], spec[i+1:], true
		}
	}
	return "", "", false
}

func missingEnv(keys []string) []string {
	var missing []string
	for _, key := range keys {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}
