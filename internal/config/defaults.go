package config

const (
	defaultFilenameTemplate = "%(ImageType)s (%(InstanceNumber)04d)%(FileExtension)s"
	defaultCollisionSuffix  = ".copy"
	defaultPlaceholder      = "UNKNOWN"
	defaultStateDir         = "~/.local/share/dicomsort"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultRetentionDays    = 14
	defaultWorkers          = 2
)

var defaultSortOrder = []string{"PatientName", "StudyDate", "SeriesDescription"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Sort: Sort{
			FilenameTemplate: defaultFilenameTemplate,
			SortOrder:        append([]string(nil), defaultSortOrder...),
			KeepOriginal:     true,
			Workers:          defaultWorkers,
			CollisionSuffix:  defaultCollisionSuffix,
			Placeholder:      defaultPlaceholder,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultRetentionDays,
		},
		Ledger: Ledger{
			Enabled: true,
		},
	}
}
