package jobs

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/teranos/scrapstudio/errors"
)

// ParamsVersion is the version of the Parameters struct this build emits.
// Engines declare which versions they accept as a semver constraint.
const ParamsVersion = "1.0.0"

// AllLanguages is the canonical wildcard language
const AllLanguages = "ALL"

// Parameters is the immutable snapshot a job is launched with
type Parameters struct {
	Version    string   `json:"version"`
	Country    string   `json:"country"`
	Categories []string `json:"categories"`
	Languages  []string `json:"languages"`
	Keywords   string   `json:"keywords"`
}

// Normalize trims every value, drops blanks, dedupes and sorts the sets.
// Any wildcard language ("ALL", "*") collapses the set to ["ALL"].
func (p Parameters) Normalize() Parameters {
	out := Parameters{
		Version:    strings.TrimSpace(p.Version),
		Country:    strings.TrimSpace(p.Country),
		Categories: normalizeSet(p.Categories),
		Keywords:   strings.TrimSpace(p.Keywords),
	}
	if out.Version == "" {
		out.Version = ParamsVersion
	}

	langs := normalizeSet(p.Languages)
	for _, l := range langs {
		if isWildcard(l) {
			langs = []string{AllLanguages}
			break
		}
	}
	out.Languages = langs
	return out
}

// Validate reports why p cannot be launched. Call it on normalized params.
func (p Parameters) Validate() error {
	if p.Country == "" {
		return errors.WithHint(errors.Wrap(errors.ErrInvalidParameters, "country is required"),
			"pick a country from `scrapstudio filters`")
	}
	if len(p.Categories) == 0 {
		return errors.WithHint(errors.Wrap(errors.ErrInvalidParameters, "at least one category is required"),
			"pick one or more types from `scrapstudio filters`")
	}
	if _, err := semver.NewVersion(p.Version); err != nil {
		return errors.Wrapf(errors.ErrInvalidParameters, "version %q is not semver", p.Version)
	}
	return nil
}

// WantsAllLanguages reports whether the engine should expand languages
// from its catalog
func (p Parameters) WantsAllLanguages() bool {
	if len(p.Languages) == 0 {
		return true
	}
	for _, l := range p.Languages {
		if isWildcard(l) {
			return true
		}
	}
	return false
}

func (p Parameters) clone() Parameters {
	p.Categories = append([]string(nil), p.Categories...)
	p.Languages = append([]string(nil), p.Languages...)
	return p
}

func isWildcard(l string) bool {
	return strings.EqualFold(l, AllLanguages) || l == "*"
}

func normalizeSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
