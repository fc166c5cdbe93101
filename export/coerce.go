package export

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// listSeparator joins list values into a single cell
const listSeparator = "; "

// Coerce renders a record value as a cell string. nil becomes "".
// Maps are rendered as JSON so the output does not depend on map iteration order.
func Coerce(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", x)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.UTC().Format(time.RFC3339)
	case *time.Time:
		if x == nil {
			return ""
		}
		return Coerce(*x)
	case []string:
		return strings.Join(x, listSeparator)
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = Coerce(item)
		}
		return strings.Join(parts, listSeparator)
	case map[string]any:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Escape quotes s when it contains the delimiter, a double quote or a line
// break, doubling embedded quotes. Anything else is returned unchanged.
func Escape(s string, delimiter rune) string {
	if !strings.ContainsRune(s, delimiter) && !strings.ContainsAny(s, "\"\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
