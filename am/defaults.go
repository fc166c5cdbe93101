package am

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Script repository
	v.SetDefault("scripts.root", "scrapers")
	v.SetDefault("scripts.backup_dir", "")
	v.SetDefault("scripts.extension", ".py")
	v.SetDefault("scripts.check_command", "")

	// Export
	v.SetDefault("export.template", "fr")
	v.SetDefault("export.schema", []string{})
	v.SetDefault("export.delimiter", ",")
	v.SetDefault("export.limit", 10000)

	// Engine adapter
	v.SetDefault("engine.command", "")
	v.SetDefault("engine.params_version", "^1")
	v.SetDefault("engine.param_names", map[string]string{
		"country":  "country",
		"category": "profession",
		"language": "language",
		"keywords": "keywords",
	})
	v.SetDefault("engine.combo_delay_ms", 500) // polite pause between combos
	v.SetDefault("engine.timeout_seconds", 0)

	v.SetDefault("jobs.log_limit", 1000)

	v.SetDefault("database.path", "scrapmaster.db")
}

// BindLegacyEnvVars binds the environment variables the studio has always
// honoured, in addition to the SCRAPSTUDIO_* names.
func BindLegacyEnvVars(v *viper.Viper) {
	v.BindEnv("scripts.root", "SCRAPSTUDIO_SCRIPTS_ROOT", "SCRAPMASTER_SCRAPERS")
	v.BindEnv("database.path", "SCRAPSTUDIO_DATABASE_PATH", "SCRAPMASTER_DB")
}
