package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/teranos/scrapstudio/errors"
)

// Record is one opaque result record: field name to value
type Record map[string]any

// Row is a record projected onto a schema. Every column has a value; Fields
// holds the same values already escaped for the normalizer's delimiter.
type Row struct {
	schema    *Schema
	delimiter rune
	values    []string
	fields    []string
}

// Get returns the unescaped value of column name
func (r Row) Get(name string) (string, bool) {
	if r.schema == nil {
		return "", false
	}
	i, ok := r.schema.Index(name)
	if !ok {
		return "", false
	}
	return r.values[i], true
}

// Values returns the unescaped values in schema order
func (r Row) Values() []string {
	return append([]string(nil), r.values...)
}

// Fields returns the escaped cells in schema order
func (r Row) Fields() []string {
	return append([]string(nil), r.fields...)
}

// Map returns column name to unescaped value
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r.values))
	if r.schema == nil {
		return m
	}
	for i, name := range r.schema.Names() {
		m[name] = r.values[i]
	}
	return m
}

// Normalizer projects records onto a schema and serializes them.
// It holds no mutable state; one instance is shared for the life of the process.
type Normalizer struct {
	schema    *Schema
	delimiter rune
	rawKey    string
}

// Option configures a Normalizer
type Option func(*Normalizer)

// WithDelimiter sets the column delimiter (default ',')
func WithDelimiter(d rune) Option {
	return func(n *Normalizer) { n.delimiter = d }
}

// WithRawFallback names a record field holding a JSON object that is searched
// when none of a column's sources has a non-blank value.
func WithRawFallback(key string) Option {
	return func(n *Normalizer) { n.rawKey = key }
}

// NewNormalizer fixes the schema and options for all later exports
func NewNormalizer(schema *Schema, opts ...Option) (*Normalizer, error) {
	if schema == nil {
		return nil, errors.New("export normalizer needs a schema")
	}
	n := &Normalizer{schema: schema, delimiter: ','}
	for _, opt := range opts {
		opt(n)
	}
	if n.delimiter == '"' || n.delimiter == '\r' || n.delimiter == '\n' || n.delimiter == 0 {
		return nil, errors.Newf("invalid export delimiter %q", n.delimiter)
	}
	return n, nil
}

// Schema returns the configured schema
func (n *Normalizer) Schema() *Schema { return n.schema }

// Delimiter returns the configured delimiter
func (n *Normalizer) Delimiter() rune { return n.delimiter }

// Normalize projects each record onto the schema. It never fails: absent
// columns become "" and fields outside the schema are ignored.
func (n *Normalizer) Normalize(records []Record) []Row {
	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = n.normalizeOne(rec)
	}
	return rows
}

func (n *Normalizer) normalizeOne(rec Record) Row {
	row := Row{
		schema:    n.schema,
		delimiter: n.delimiter,
		values:    make([]string, n.schema.Len()),
		fields:    make([]string, n.schema.Len()),
	}

	var raw map[string]any
	rawParsed := false

	for i, col := range n.schema.columns {
		value, found := pick(rec, col.sources())
		if !found && n.rawKey != "" {
			if !rawParsed {
				raw = parseRaw(rec[n.rawKey])
				rawParsed = true
			}
			if v, ok := pick(raw, col.sources()); ok {
				value = v
			}
		}
		row.values[i] = value
		row.fields[i] = Escape(value, n.delimiter)
	}
	return row
}

// pick returns the first non-blank source value. found is false when every
// source is absent or blank; value is then the first present value, if any.
func pick(rec map[string]any, sources []string) (value string, found bool) {
	first, havePresent := "", false
	for _, key := range sources {
		v, ok := rec[key]
		if !ok {
			continue
		}
		s := Coerce(v)
		if strings.TrimSpace(s) != "" {
			return s, true
		}
		if !havePresent {
			first, havePresent = s, true
		}
	}
	return first, false
}

func parseRaw(v any) map[string]any {
	var data []byte
	switch x := v.(type) {
	case string:
		data = []byte(x)
	case []byte:
		data = x
	case map[string]any:
		return x
	default:
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil
	}
	return raw
}

// Header returns the escaped header line without a line terminator
func (n *Normalizer) Header() string {
	names := n.schema.Names()
	for i, name := range names {
		names[i] = Escape(name, n.delimiter)
	}
	return strings.Join(names, string(n.delimiter))
}

// Serialize writes the header line then one line per row, each terminated by
// "\n". It fails only when w fails.
func (n *Normalizer) Serialize(w io.Writer, rows []Row) error {
	bw := bufio.NewWriter(w)
	sep := string(n.delimiter)

	if _, err := bw.WriteString(n.Header() + "\n"); err != nil {
		return errors.Wrap(err, "write export header")
	}
	for i, row := range rows {
		fields := n.fieldsFor(row)
		if _, err := bw.WriteString(strings.Join(fields, sep) + "\n"); err != nil {
			return errors.Wrapf(err, "write export row %d", i)
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "flush export")
	}
	return nil
}

// fieldsFor re-projects rows produced under another schema or delimiter
func (n *Normalizer) fieldsFor(row Row) []string {
	if row.schema == n.schema && row.delimiter == n.delimiter {
		return row.fields
	}
	fields := make([]string, n.schema.Len())
	for i, name := range n.schema.Names() {
		if v, ok := row.Get(name); ok {
			fields[i] = Escape(v, n.delimiter)
		}
	}
	return fields
}

// Export is Normalize followed by Serialize
func (n *Normalizer) Export(w io.Writer, records []Record) error {
	return n.Serialize(w, n.Normalize(records))
}
