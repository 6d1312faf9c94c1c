package config

const (
	defaultMaxDuration  = 60.0
	defaultPolicy       = "longest-first"
	defaultTargetWidth  = 1080
	defaultTargetHeight = 1920
	defaultOriginalGain = 0.9
	defaultMusicGain    = 0.6
	defaultBitrate      = "2500k"
	defaultPreset       = "medium"
	defaultThreads      = 4
	defaultCacheDir     = "~/.cache/reelcut"
	defaultHistoryDB    = "~/.local/share/reelcut/history.db"
	defaultTitle        = "Football Short #Shorts"
	defaultPrivacy      = "private"
	defaultUploadURL    = "https://www.googleapis.com"
	defaultChunkSize    = 1 << 20
	defaultLogLevel     = "info"
	defaultLogFormat    = "auto"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Build: Build{
			MaxDuration:  defaultMaxDuration,
			Policy:       defaultPolicy,
			TargetWidth:  defaultTargetWidth,
			TargetHeight: defaultTargetHeight,
			OriginalGain: defaultOriginalGain,
			MusicGain:    defaultMusicGain,
		},
		Export: Export{
			Bitrate: defaultBitrate,
			Preset:  defaultPreset,
			Threads: defaultThreads,
		},
		Paths: Paths{
			CacheDir:  defaultCacheDir,
			HistoryDB: defaultHistoryDB,
			FFmpeg:    "ffmpeg",
			FFprobe:   "ffprobe",
		},
		Upload: Upload{
			DefaultTitle: defaultTitle,
			DefaultTags:  []string{},
			Privacy:      defaultPrivacy,
			BaseURL:      defaultUploadURL,
			ChunkSize:    defaultChunkSize,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
