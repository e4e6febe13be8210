// Package openaicompat implements llm.Provider against any OpenAI-compatible
// Chat Completions endpoint (OpenAI, Azure OpenAI proxies, vLLM, Ollama, ...).
//
// It is the generation backend for every agent and for semantic guardrail
// classification. Tool definitions are forwarded as-is so the triage agent can
// emit transfer_to_* calls.
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "openai",
//	    APIKey:       cfg.LLM.APIKey,
//	    BaseURL:      "https://api.openai.com",
//	    DefaultModel: "gpt-4o-mini",
//	}, logger)
package openaicompat
