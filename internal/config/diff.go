package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider or
// server changes require a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CharacterChanged is true when the persona, display name, avatar or
	// human name changed.
	CharacterChanged bool

	// VoiceChanged is true when the TTS voice identifier changed.
	VoiceChanged bool

	// ProactivePromptChanged is true when the proactive prompt file path
	// changed.
	ProactivePromptChanged bool
}

// Changed reports whether the diff carries any hot-reloadable change.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.CharacterChanged || d.VoiceChanged || d.ProactivePromptChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Character != new.Character {
		d.CharacterChanged = true
	}
	if old.Providers.TTS.Voice != new.Providers.TTS.Voice {
		d.VoiceChanged = true
	}
	if old.Conversation.ProactivePromptPath != new.Conversation.ProactivePromptPath {
		d.ProactivePromptChanged = true
	}

	return d
}
