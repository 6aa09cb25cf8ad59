// Package llm translates transcripts through an OpenAI compatible chat
// completion API.
//
// The client sends the transcript as the user message under a fixed
// translator system prompt and returns the reply verbatim. Identical source
// and target languages short-circuit without a request.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty completions and
// network timeouts with exponential backoff (base 1s, max 10s, up to 3
// attempts by default). Context cancellation aborts retries immediately.
//
// Callers treat any returned error as recoverable: the pipeline keeps the
// untranslated text and records a degradation.
package llm
