package canon

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const hexDigits = "0123456789abcdef"

// Marshal produces canonical JSON for v.
//
// Accepted inputs are canon values plus the plain Go shapes string, int,
// int64, bool, []string, []any and map[string]any (converted recursively).
// Floats and nil are rejected.
func Marshal(v any) ([]byte, error) {
	cv, err := From(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encode(&buf, cv); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// From converts a plain Go value into a canon Value.
func From(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case bool:
		return Bool(val), nil
	case []string:
		return Strings(val...), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			ev, err := From(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case map[string]string:
		obj := make(Object, len(val))
		for k, elem := range val {
			obj[k] = String(elem)
		}
		return obj, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			ev, err := From(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = ev
		}
		return obj, nil
	case float32, float64:
		return nil, fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

func encode(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case String:
		writeString(buf, string(val))
	case Int:
		fmt.Fprintf(buf, "%d", int64(val))
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k)
			buf.WriteByte(':')
			if err := encode(buf, val[k]); err != nil {
				return fmt.Errorf("object[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported canon value: %T", v)
	}
	return nil
}

// writeString writes s as an NFC-normalized JSON string. Only the quote,
// the backslash and C0 control characters are escaped; <, >, & and
// U+2028/U+2029 are written literally.
func writeString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(strings.ToValidUTF8(s, "\uFFFD"))
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			buf.WriteString(`\"`)
		case c == '\\':
			buf.WriteString(`\\`)
		case c == '\b':
			buf.WriteString(`\b`)
		case c == '\f':
			buf.WriteString(`\f`)
		case c == '\n':
			buf.WriteString(`\n`)
		case c == '\r':
			buf.WriteString(`\r`)
		case c == '\t':
			buf.WriteString(`\t`)
		case c < 0x20:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexDigits[c>>4])
			buf.WriteByte(hexDigits[c&0xF])
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte('"')
}
