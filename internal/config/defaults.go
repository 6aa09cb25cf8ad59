package config

const (
	defaultConfigPath             = "~/.config/dubber/config.toml"
	defaultStagingDir             = "~/.local/share/dubber/staging"
	defaultOutputDir              = "~/.local/share/dubber/output"
	defaultLogDir                 = "~/.local/share/dubber/logs"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultWorkers                = 1
	defaultQueuePollInterval      = 5
	defaultHeartbeatInterval      = 15
	defaultHeartbeatTimeout       = 120
	defaultStaleStagingHours      = 24
	defaultTargetLanguage         = "en"
	defaultSoftDeadlineMinutes    = 25
	defaultHardDeadlineMinutes    = 30
	defaultSmoothingWindow        = 5
	defaultVoiceTargetDB          = -20.0
	defaultFFmpeg                 = "ffmpeg"
	defaultFFprobe                = "ffprobe"
	defaultUVX                    = "uvx"
	defaultSeparationModel        = "htdemucs"
	defaultTranscriptionProvider  = "whisperx"
	defaultTranscriptionModel     = "large-v3"
	defaultVADMethod              = "silero"
	defaultOpenAIBaseURL          = "https://api.openai.com/v1"
	defaultOpenAITimeoutSeconds   = 120
	defaultTranslationModel       = "gpt-4o-mini"
	defaultTranslationRetries     = 3
	defaultSynthesisModel         = "tts_models/multilingual/multi-dataset/xtts_v2"
	defaultSynthesisFallback      = "tacotron"
	defaultSynthesisFallbackModel = "tts_models/en/ljspeech/tacotron2-DDC"
	defaultOpenAISpeechModel      = "tts-1"
	defaultOpenAIVoice            = "nova"
	defaultOpsBind                = "127.0.0.1:7491"
	defaultNtfyRequestTimeout     = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
		},
		Workflow: Workflow{
			Workers:           defaultWorkers,
			QueuePollInterval: defaultQueuePollInterval,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
			StaleStagingHours: defaultStaleStagingHours,
		},
		Pipeline: Pipeline{
			DefaultTargetLanguage: defaultTargetLanguage,
			SoftDeadlineMinutes:   defaultSoftDeadlineMinutes,
			HardDeadlineMinutes:   defaultHardDeadlineMinutes,
			SmoothingWindow:       defaultSmoothingWindow,
			NormalizeVoice:        true,
			VoiceTargetDB:         defaultVoiceTargetDB,
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpeg,
			FFprobe: defaultFFprobe,
			UVX:     defaultUVX,
		},
		Separation: Separation{Model: defaultSeparationModel},
		Transcription: Transcription{
			Provider:  defaultTranscriptionProvider,
			Model:     defaultTranscriptionModel,
			VADMethod: defaultVADMethod,
		},
		OpenAI: OpenAI{
			BaseURL:        defaultOpenAIBaseURL,
			TimeoutSeconds: defaultOpenAITimeoutSeconds,
		},
		Translation: Translation{
			Model:         defaultTranslationModel,
			RetryAttempts: defaultTranslationRetries,
		},
		Synthesis: Synthesis{
			Model:            defaultSynthesisModel,
			FallbackProvider: defaultSynthesisFallback,
			FallbackModel:    defaultSynthesisFallbackModel,
			OpenAIModel:      defaultOpenAISpeechModel,
			OpenAIVoice:      defaultOpenAIVoice,
		},
		Ops: Ops{Bind: defaultOpsBind},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
