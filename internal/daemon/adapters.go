package daemon

import (
	"go.uber.org/zap"

	"dubber/internal/avsync"
	"dubber/internal/config"
	"dubber/internal/services/demucs"
	"dubber/internal/services/ffmpeg"
	"dubber/internal/services/llm"
	"dubber/internal/services/openai"
	"dubber/internal/services/whisperx"
	"dubber/internal/services/xtts"
	"dubber/internal/stage"
)

// BuildAdapters constructs the external stage adapters described by cfg.
func BuildAdapters(cfg *config.Config, logger *zap.Logger) stage.Adapters {
	oa := openai.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		SpeechModel:    cfg.Synthesis.OpenAIModel,
		Voice:          cfg.Synthesis.OpenAIVoice,
		TimeoutSeconds: cfg.OpenAI.TimeoutSeconds,
	}

	adapters := stage.Adapters{
		Extractor: ffmpeg.NewExtractor(cfg.Tools.FFmpeg, nil),
		Separator: demucs.New(demucs.Config{
			UVX:         cfg.Tools.UVX,
			Model:       cfg.Separation.Model,
			CUDAEnabled: cfg.Tools.CUDAEnabled,
		}, nil),
		Translator: llm.NewClient(llm.Config{
			APIKey:         cfg.OpenAI.APIKey,
			BaseURL:        cfg.OpenAI.BaseURL,
			Model:          cfg.Translation.Model,
			TimeoutSeconds: cfg.OpenAI.TimeoutSeconds,
		}, llm.WithRetryMaxAttempts(cfg.Translation.RetryAttempts)),
		Synthesizer: xtts.NewCloning(xtts.Config{
			UVX:         cfg.Tools.UVX,
			Model:       cfg.Synthesis.Model,
			CUDAEnabled: cfg.Tools.CUDAEnabled,
		}, nil),
		Syncer: avsync.New(cfg.Tools.FFmpeg, cfg.Tools.FFprobe, avsync.WithLogger(logger)),
	}

	switch cfg.Transcription.Provider {
	case "openai":
		adapters.Transcriber = openai.NewTranscriber(oa)
	default:
		adapters.Transcriber = whisperx.NewService(whisperx.Config{
			UVX:         cfg.Tools.UVX,
			Model:       cfg.Transcription.Model,
			CUDAEnabled: cfg.Tools.CUDAEnabled,
			VADMethod:   cfg.Transcription.VADMethod,
			HFToken:     cfg.Transcription.HFToken,
		}, nil)
	}

	switch cfg.Synthesis.FallbackProvider {
	case "openai":
		adapters.FallbackSynthesis = openai.NewSynthesizer(oa)
	default:
		adapters.FallbackSynthesis = xtts.New(xtts.Config{
			UVX:         cfg.Tools.UVX,
			Model:       cfg.Synthesis.FallbackModel,
			CUDAEnabled: cfg.Tools.CUDAEnabled,
		}, nil)
	}
	return adapters
}
