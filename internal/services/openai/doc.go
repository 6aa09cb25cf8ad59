// Package openai adapts the hosted OpenAI audio endpoints: text-to-speech
// as the non-cloning fallback synthesizer and whisper-1 as an alternative
// transcriber. Any OpenAI compatible base URL works.
package openai
