package am

import (
	"strings"
	"unicode/utf8"

	"github.com/Masterminds/semver/v3"

	"github.com/teranos/scrapstudio/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Scripts.Root) == "" {
		return errors.WithHint(
			errors.New("scripts.root cannot be empty"),
			"set scripts.root in am.toml or SCRAPMASTER_SCRAPERS")
	}

	ext := c.Scripts.Extension
	if !strings.HasPrefix(ext, ".") || len(ext) < 2 || strings.ContainsAny(ext, `/\`) {
		return errors.Newf("scripts.extension must look like \".py\", got %q", ext)
	}

	if c.Export.Template == "" && len(c.Export.Schema) == 0 {
		return errors.New("export.template cannot be empty when export.schema is unset")
	}
	if c.Export.Delimiter != "" {
		if utf8.RuneCountInString(c.Export.Delimiter) != 1 {
			return errors.Newf("export.delimiter must be a single character, got %q", c.Export.Delimiter)
		}
		if strings.ContainsAny(c.Export.Delimiter, "\"\r\n") {
			return errors.Newf("export.delimiter cannot be a quote or line break, got %q", c.Export.Delimiter)
		}
	}
	if c.Export.Limit < 0 {
		return errors.Newf("export.limit must be >= 0, got %d", c.Export.Limit)
	}
	seen := make(map[string]bool, len(c.Export.Schema))
	for _, col := range c.Export.Schema {
		if strings.TrimSpace(col) == "" {
			return errors.New("export.schema cannot contain blank column names")
		}
		if seen[col] {
			return errors.Newf("export.schema lists column %q twice", col)
		}
		seen[col] = true
	}

	if c.Engine.ParamsVersion != "" {
		if _, err := semver.NewConstraint(c.Engine.ParamsVersion); err != nil {
			return errors.Wrapf(err, "engine.params_version %q is not a semver constraint", c.Engine.ParamsVersion)
		}
	}
	if c.Engine.ComboDelayMS < 0 {
		return errors.Newf("engine.combo_delay_ms must be >= 0, got %d", c.Engine.ComboDelayMS)
	}
	if c.Engine.TimeoutSeconds < 0 {
		return errors.Newf("engine.timeout_seconds must be >= 0, got %d", c.Engine.TimeoutSeconds)
	}

	if c.Jobs.LogLimit < 0 {
		return errors.Newf("jobs.log_limit must be >= 0, got %d", c.Jobs.LogLimit)
	}

	return nil
}
