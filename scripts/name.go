package scripts

import (
	"strings"

	"github.com/teranos/scrapstudio/errors"
)

// ValidateName checks that name is a single path segment ending in ext.
// It never touches the filesystem.
func ValidateName(name, ext string) error {
	switch {
	case name == "":
		return errors.WithHint(errors.NewInvalidNameError("empty script name"),
			"pass a file name such as scraper_thailande.py")
	case strings.ContainsAny(name, `/\`):
		return errors.WithHint(errors.NewInvalidNameError("%q contains a path separator", name),
			"scripts live directly under the script root; subdirectories are not addressable")
	case strings.Contains(name, ".."):
		return errors.NewInvalidNameError("%q contains a parent reference", name)
	case strings.HasPrefix(name, "."):
		return errors.NewInvalidNameError("%q is a hidden file", name)
	case strings.ContainsRune(name, 0):
		return errors.NewInvalidNameError("%q contains a NUL byte", name)
	}

	if ext != "" {
		stem, ok := strings.CutSuffix(name, ext)
		if !ok || stem == "" {
			return errors.WithHintf(errors.NewInvalidNameError("%q does not end in %s", name, ext),
				"only %s files are managed", ext)
		}
	}
	return nil
}
