package am

import "unicode/utf8"

// Config represents the scrapstudio configuration
type Config struct {
	Scripts  ScriptsConfig  `mapstructure:"scripts" toml:"scripts" json:"scripts" yaml:"scripts"`
	Export   ExportConfig   `mapstructure:"export" toml:"export" json:"export" yaml:"export"`
	Engine   EngineConfig   `mapstructure:"engine" toml:"engine" json:"engine" yaml:"engine"`
	Jobs     JobsConfig     `mapstructure:"jobs" toml:"jobs" json:"jobs" yaml:"jobs"`
	Database DatabaseConfig `mapstructure:"database" toml:"database" json:"database" yaml:"database"`
}

// ScriptsConfig configures the script repository
type ScriptsConfig struct {
	Root         string `mapstructure:"root" toml:"root" json:"root" yaml:"root"`
	BackupDir    string `mapstructure:"backup_dir" toml:"backup_dir" json:"backup_dir" yaml:"backup_dir"`          // empty = alongside the script
	Extension    string `mapstructure:"extension" toml:"extension" json:"extension" yaml:"extension"`               // e.g. ".py"
	CheckCommand string `mapstructure:"check_command" toml:"check_command" json:"check_command" yaml:"check_command"` // {file} is replaced by the candidate path
}

// ExportConfig configures the tabular export
type ExportConfig struct {
	Template  string   `mapstructure:"template" toml:"template" json:"template" yaml:"template"`
	Schema    []string `mapstructure:"schema" toml:"schema" json:"schema" yaml:"schema"` // overrides Template when set
	Delimiter string   `mapstructure:"delimiter" toml:"delimiter" json:"delimiter" yaml:"delimiter"`
	Limit     int      `mapstructure:"limit" toml:"limit" json:"limit" yaml:"limit"` // 0 = no limit
}

// DelimiterRune returns the configured delimiter, or ',' when unset
func (e ExportConfig) DelimiterRune() rune {
	if e.Delimiter == "" {
		return ','
	}
	r, _ := utf8.DecodeRuneInString(e.Delimiter)
	return r
}

// EngineConfig configures the external scraping engine adapter
type EngineConfig struct {
	Command        string            `mapstructure:"command" toml:"command" json:"command" yaml:"command"`
	ParamsVersion  string            `mapstructure:"params_version" toml:"params_version" json:"params_version" yaml:"params_version"` // semver constraint
	ParamNames     map[string]string `mapstructure:"param_names" toml:"param_names" json:"param_names" yaml:"param_names"`
	ComboDelayMS   int               `mapstructure:"combo_delay_ms" toml:"combo_delay_ms" json:"combo_delay_ms" yaml:"combo_delay_ms"`
	TimeoutSeconds int               `mapstructure:"timeout_seconds" toml:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds"` // per combo, 0 = none
}

// JobsConfig configures the job orchestrator
type JobsConfig struct {
	LogLimit int `mapstructure:"log_limit" toml:"log_limit" json:"log_limit" yaml:"log_limit"`
}

// DatabaseConfig configures the SQLite results database
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path" json:"path" yaml:"path"`
}

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// ConfigFileName is the project/user config file name
const ConfigFileName = "am.toml"
