package jobs

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/teranos/scrapstudio/errors"
)

func TestParameters_Normalize(t *testing.T) {
	p := Parameters{
		Country:    "  Thaïlande ",
		Categories: []string{"Avocats", " Associations", "Avocats", ""},
		Languages:  []string{"fr", "en", "fr"},
		Keywords:   " francophone ",
	}.Normalize()

	assert.Equal(t, ParamsVersion, p.Version)
	assert.Equal(t, "Thaïlande", p.Country)
	assert.Equal(t, []string{"Associations", "Avocats"}, p.Categories)
	assert.Equal(t, []string{"en", "fr"}, p.Languages)
	assert.Equal(t, "francophone", p.Keywords)
	assert.False(t, p.WantsAllLanguages())
}

func TestParameters_WildcardLanguages(t *testing.T) {
	for _, langs := range [][]string{nil, {"ALL"}, {"fr", "*"}, {"all"}} {
		p := Parameters{Country: "France", Categories: []string{"Avocats"}, Languages: langs}.Normalize()
		assert.True(t, p.WantsAllLanguages(), "%v", langs)
		assert.NoError(t, p.Validate())
	}

	p := Parameters{Languages: []string{"fr", "*"}}.Normalize()
	assert.Equal(t, []string{AllLanguages}, p.Languages)
}

func TestParameters_Validate(t *testing.T) {
	tests := []struct {
		name   string
		params Parameters
		ok     bool
	}{
		{"valid", Parameters{Country: "France", Categories: []string{"Avocats"}}, true},
		{"missing country", Parameters{Categories: []string{"Avocats"}}, false},
		{"missing categories", Parameters{Country: "France"}, false},
		{"bad version", Parameters{Version: "one", Country: "France", Categories: []string{"Avocats"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Normalize().Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.IsInvalidParameters(err))
		})
	}
}

func TestSanitizeError(t *testing.T) {
	assert.Equal(t, "", SanitizeError(nil))
	assert.Equal(t, "a b c", SanitizeError(errors.New("a\r\n b\x00\tc  ")))
	assert.Equal(t, "engine failed without a message", SanitizeError(errors.New(" \n ")))

	long := SanitizeError(errors.New(strings.Repeat("é", 500)))
	assert.Equal(t, MaxErrorLength, utf8.RuneCountInString(long))
	assert.True(t, strings.HasSuffix(long, "…"))
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), ClassifyError(nil))
	assert.Equal(t, ErrorCodeShutdown, ClassifyError(errors.Wrap(context.Canceled, "stop")))
	assert.Equal(t, ErrorCodeTimeout, ClassifyError(context.DeadlineExceeded))
	assert.Equal(t, ErrorCodeNetwork, ClassifyError(errors.New("connection refused")))
	assert.Equal(t, ErrorCodeDatabase, ClassifyError(errors.New("sqlite: database is locked")))
	assert.Equal(t, ErrorCodeShutdown, ClassifyError(errors.Wrap(errors.New("sql: database is closed"), "save results")))
	assert.Equal(t, ErrorCodeEngine, ClassifyError(errors.New("exit status 1")))
}
