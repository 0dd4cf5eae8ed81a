package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultConfigPath            = "~/.config/isoconvert/config.toml"
	projectConfigName            = "isoconvert.toml"
	defaultLogDir                = "~/.local/share/isoconvert/logs"
	defaultOutputSubdir          = "Converted"
	defaultPlayerBinary          = "vlc"
	defaultEncoderBinary         = "HandBrakeCLI"
	defaultUdisksctlBinary       = "udisksctl"
	defaultParallelism           = 2
	defaultPreloadTimeoutSeconds = 5
	defaultMinFreeGiB            = 20
	defaultPreset                = "H.265 MKV 2160p60 4K"
	defaultContainer             = "mkv"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultRequestTimeout        = 10
	historyFileName              = "history.db"

	// EnvWorklist overrides paths.worklist_file.
	EnvWorklist = "ISOCONVERT_WORKLIST"
	// EnvParallelism overrides pipeline.parallelism.
	EnvParallelism = "ISOCONVERT_PARALLELISM"
)

// defaultEncoderArgs mirrors the flag set the batch tool has always passed
// after the preset: chapter markers, English plus all audio, and subtitle
// scanning with forced subtitles burned in.
var defaultEncoderArgs = []string{
	"--markers",
	"--audio-lang-list", "eng",
	"--all-audio",
	"--subtitle", "scan",
	"--subtitle-forced=1",
	"--subtitle-burned=1",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	extra := make([]string, len(defaultEncoderArgs))
	copy(extra, defaultEncoderArgs)
	return Config{
		Paths: Paths{
			LogDir:       defaultLogDir,
			StateDir:     defaultStateDir(),
			OutputSubdir: defaultOutputSubdir,
		},
		Tools: Tools{
			PlayerBinary:    defaultPlayerBinary,
			EncoderBinary:   defaultEncoderBinary,
			UdisksctlBinary: defaultUdisksctlBinary,
		},
		Pipeline: Pipeline{
			Parallelism:           defaultParallelism,
			PreloadTimeoutSeconds: defaultPreloadTimeoutSeconds,
			MinFreeGiB:            defaultMinFreeGiB,
		},
		Encoding: Encoding{
			Preset:    defaultPreset,
			Container: defaultContainer,
			ExtraArgs: extra,
		},
		History: History{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultStateDir() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "isoconvert")
	}
	return "~/.local/state/isoconvert"
}
