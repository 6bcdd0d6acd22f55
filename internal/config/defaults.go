package config

const (
	defaultConfigPath     = "~/.config/aaxsplit/config.toml"
	defaultOutputDir      = "."
	defaultLogDir         = "~/.local/share/aaxsplit/logs"
	defaultFFmpegBinary   = "ffmpeg"
	defaultFFprobeBinary  = "ffprobe"
	defaultCodec          = "libmp3lame"
	defaultExtension      = "mp3"
	defaultID3v2Version   = 3
	defaultHistoryEnabled = true
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"

	// ActivationBytesEnv supplies activation bytes when neither flag nor config sets them.
	ActivationBytesEnv = "AAXSPLIT_ACTIVATION_BYTES"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			WorkDir:   defaultWorkDir(),
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir(),
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpegBinary,
			FFprobe: defaultFFprobeBinary,
		},
		Encoding: Encoding{
			Codec:        defaultCodec,
			Extension:    defaultExtension,
			ID3v2Version: defaultID3v2Version,
		},
		History: History{
			Enabled: defaultHistoryEnabled,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
