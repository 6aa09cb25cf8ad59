package dubbing

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	SettingVocalVolume      = "vocal_volume"
	SettingBackgroundVolume = "background_volume"
	SettingSpeed            = "speed"
	SettingVoice            = "voice"

	DefaultVocalVolume      = 1.0
	DefaultBackgroundVolume = 0.3
	DefaultSpeed            = 1.0
)

// VoiceSettings holds named tunables supplied with a job. Values are either
// float64 or string once normalized through ParseVoiceSettings or JSON.
type VoiceSettings map[string]any

// Float returns the named numeric setting, or def when missing or not numeric.
func (v VoiceSettings) Float(name string, def float64) float64 {
	raw, ok := v[name]
	if !ok {
		return def
	}
	switch val := raw.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f
		}
	}
	return def
}

// String returns the named setting rendered as a string.
func (v VoiceSettings) String(name string) string {
	raw, ok := v[name]
	if !ok || raw == nil {
		return ""
	}
	if s, ok := raw.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(raw)
}

func (v VoiceSettings) VocalVolume() float64 {
	return v.Float(SettingVocalVolume, DefaultVocalVolume)
}

func (v VoiceSettings) BackgroundVolume() float64 {
	return v.Float(SettingBackgroundVolume, DefaultBackgroundVolume)
}

func (v VoiceSettings) Speed() float64 {
	return v.Float(SettingSpeed, DefaultSpeed)
}

// Clone returns a shallow copy that is safe to mutate.
func (v VoiceSettings) Clone() VoiceSettings {
	out := make(VoiceSettings, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// ParseVoiceSettings converts key=value pairs into settings. Numeric values
// are stored as float64; everything else stays a string.
func ParseVoiceSettings(pairs []string) (VoiceSettings, error) {
	settings := VoiceSettings{}
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("voice setting %q: expected key=value", pair)
		}
		value = strings.TrimSpace(value)
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			settings[key] = f
			continue
		}
		settings[key] = value
	}
	return settings, nil
}
