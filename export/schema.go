// Package export projects scrape result records onto a fixed, ordered column
// schema and writes them as delimiter-separated text.
//
// The schema is the contract of an export: columns missing from a record come
// out empty, fields the schema does not name are dropped.
package export

import (
	"strings"

	"github.com/teranos/scrapstudio/errors"
)

// Column is one output column. Sources lists the record keys consulted in
// order; an empty Sources means the column's own name.
type Column struct {
	Name    string
	Sources []string
}

func (c Column) sources() []string {
	if len(c.Sources) == 0 {
		return []string{c.Name}
	}
	return c.Sources
}

// Columns builds plain columns whose single source is their own name
func Columns(names ...string) []Column {
	cols := make([]Column, len(names))
	for i, name := range names {
		cols[i] = Column{Name: name}
	}
	return cols
}

// Schema is an immutable ordered set of columns
type Schema struct {
	columns []Column
	index   map[string]int
}

// NewSchema validates and freezes columns. Names must be non-blank and unique.
func NewSchema(columns ...Column) (*Schema, error) {
	if len(columns) == 0 {
		return nil, errors.New("export schema needs at least one column")
	}

	s := &Schema{
		columns: make([]Column, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		if strings.TrimSpace(col.Name) == "" {
			return nil, errors.Newf("export schema column %d has a blank name", i)
		}
		if _, dup := s.index[col.Name]; dup {
			return nil, errors.Newf("export schema lists column %q twice", col.Name)
		}
		s.index[col.Name] = i
		s.columns[i] = Column{Name: col.Name, Sources: append([]string(nil), col.Sources...)}
	}
	return s, nil
}

// Names returns the column names in order
func (s *Schema) Names() []string {
	names := make([]string, len(s.columns))
	for i, col := range s.columns {
		names[i] = col.Name
	}
	return names
}

// Len returns the number of columns
func (s *Schema) Len() int { return len(s.columns) }

// Index returns the position of column name
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}
