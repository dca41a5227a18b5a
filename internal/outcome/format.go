package outcome

import (
	"fmt"
	"strconv"
	"strings"
)

// HTMLFormat marks a column whose single field is already-escaped markup.
const HTMLFormat = "%h"

// Formatter is a parsed column format: literal text with printf-style
// placeholders, one per field of the column.
type Formatter struct {
	raw  string
	html bool
	segs []segment
}

type segment struct {
	lit  string
	spec string // e.g. "%-8.2f"; empty for a literal
	verb byte
}

// ParseFormat parses a column format. Supported placeholders are %s %d %f %e
// %g %x with optional "-+ 0" flags, width and precision, and %% for a
// literal percent sign. The whole format "%h" selects raw HTML output.
func ParseFormat(format string) (*Formatter, error) {
	f := &Formatter{raw: format}
	if format == HTMLFormat {
		f.html = true
		f.segs = []segment{{spec: "%s", verb: 's'}}
		return f, nil
	}
	var lit strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			lit.WriteByte(c)
			continue
		}
		j := i + 1
		if j < len(format) && format[j] == '%' {
			lit.WriteByte('%')
			i = j
			continue
		}
		for j < len(format) && strings.IndexByte("-+ 0", format[j]) >= 0 {
			j++
		}
		for j < len(format) && isDigit(format[j]) {
			j++
		}
		if j < len(format) && format[j] == '.' {
			j++
			for j < len(format) && isDigit(format[j]) {
				j++
			}
		}
		if j >= len(format) {
			return nil, fmt.Errorf("incomplete placeholder at offset %d in %q", i, format)
		}
		verb := format[j]
		if strings.IndexByte("sdfegx", verb) < 0 {
			return nil, fmt.Errorf("unsupported placeholder %q in %q", format[i:j+1], format)
		}
		if lit.Len() > 0 {
			f.segs = append(f.segs, segment{lit: lit.String()})
			lit.Reset()
		}
		f.segs = append(f.segs, segment{spec: format[i : j+1], verb: verb})
		i = j
	}
	if lit.Len() > 0 {
		f.segs = append(f.segs, segment{lit: lit.String()})
	}
	return f, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// IsHTML reports whether this is the raw HTML format.
func (f *Formatter) IsHTML() bool { return f.html }

// NumArgs is the number of placeholders in the format.
func (f *Formatter) NumArgs() int {
	n := 0
	for _, s := range f.segs {
		if s.spec != "" {
			n++
		}
	}
	return n
}

// Format renders args, which must match the placeholders one for one.
func (f *Formatter) Format(args []any) (string, error) {
	if len(args) != f.NumArgs() {
		return "", fmt.Errorf("format %q has %d placeholders but %d fields", f.raw, f.NumArgs(), len(args))
	}
	var b strings.Builder
	next := 0
	for _, s := range f.segs {
		if s.spec == "" {
			b.WriteString(s.lit)
			continue
		}
		arg := args[next]
		next++
		switch s.verb {
		case 's':
			b.WriteString(fmt.Sprintf(s.spec, toText(arg)))
		case 'd', 'x':
			b.WriteString(fmt.Sprintf(s.spec, int64(toNumber(arg))))
		default:
			b.WriteString(fmt.Sprintf(s.spec, toNumber(arg)))
		}
	}
	return b.String(), nil
}

// toText converts a field value the way a PHP string conversion would.
func toText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return ""
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// truthy follows PHP: strings are true unless empty or "0", other values
// unless they are zero.
func truthy(v any) bool {
	if s, ok := v.(string); ok {
		return s != "" && s != "0"
	}
	return toNumber(v) != 0
}

// toNumber converts a field value to a float. Strings contribute their
// leading numeric prefix, or 0.
func toNumber(v any) float64 {
	switch t := v.(type) {
	case bool:
		if t {
			return 1
		}
		return 0
	case int:
		return float64(t)
	case float64:
		return t
	case string:
		s := strings.TrimSpace(t)
		if len(s) > 64 {
			s = s[:64]
		}
		for end := len(s); end > 0; end-- {
			if n, err := strconv.ParseFloat(s[:end], 64); err == nil {
				return n
			}
		}
		return 0
	default:
		return 0
	}
}
