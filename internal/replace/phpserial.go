// Package replace rewrites occurrences of a literal string across the text
// columns of a database, with full awareness of PHP-serialized values:
// serialized payloads are decoded, rewritten at their string leaves, and
// re-encoded from scratch so the embedded byte lengths stay correct.
package replace

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is one node of a decoded PHP-serialized payload: Null, Bool, Int,
// Float, String, Array, or Object.
type Value interface {
	encode(b *strings.Builder)
}

// Null is PHP null (`N;`).
type Null struct{}

// Bool is a PHP boolean (`b:0;` / `b:1;`).
type Bool bool

// Int is a PHP integer (`i:42;`).
type Int int64

// Float is a PHP float (`d:1.5;`), including the INF/-INF/NAN spellings.
type Float float64

// String is a PHP string (`s:5:"hello";`). The declared length counts
// bytes, not characters.
type String string

// Pair is one ordered member of an Array or Object. PHP array keys are
// integers or strings only.
type Pair struct {
	Key   Value
	Value Value
}

// Array is a PHP array (`a:2:{…}`), order-preserving.
type Array struct {
	Pairs []Pair
}

// Object is a PHP object (`O:8:"stdClass":1:{…}`) with its class name.
type Object struct {
	Class string
	Pairs []Pair
}

func (Null) encode(b *strings.Builder) { b.WriteString("N;") }

func (v Bool) encode(b *strings.Builder) {
	if v {
		b.WriteString("b:1;")
	} else {
		b.WriteString("b:0;")
	}
}

func (v Int) encode(b *strings.Builder) {
	b.WriteString("i:")
	b.WriteString(strconv.FormatInt(int64(v), 10))
	b.WriteByte(';')
}

func (v Float) encode(b *strings.Builder) {
	b.WriteString("d:")
	b.WriteString(formatPHPFloat(float64(v)))
	b.WriteByte(';')
}

func (v String) encode(b *strings.Builder) {
	b.WriteString("s:")
	b.WriteString(strconv.Itoa(len(v)))
	b.WriteString(`:"`)
	b.WriteString(string(v))
	b.WriteString(`";`)
}

func (v Array) encode(b *strings.Builder) {
	b.WriteString("a:")
	b.WriteString(strconv.Itoa(len(v.Pairs)))
	b.WriteString(":{")
	for _, p := range v.Pairs {
		p.Key.encode(b)
		p.Value.encode(b)
	}
	b.WriteByte('}')
}

func (v Object) encode(b *strings.Builder) {
	b.WriteString("O:")
	b.WriteString(strconv.Itoa(len(v.Class)))
	b.WriteString(`:"`)
	b.WriteString(v.Class)
	b.WriteString(`":`)
	b.WriteString(strconv.Itoa(len(v.Pairs)))
	b.WriteString(":{")
	for _, p := range v.Pairs {
		p.Key.encode(b)
		p.Value.encode(b)
	}
	b.WriteByte('}')
}

// Encode serializes a value back to PHP wire format. All lengths are
// recomputed from the current contents; nothing from the original input
// is patched in place.
func Encode(v Value) string {
	var b strings.Builder
	v.encode(&b)
	return b.String()
}

// formatPHPFloat matches PHP's modern serialize_precision=-1 behavior:
// shortest representation that round-trips, with INF/NAN spelled out.
func formatPHPFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NAN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	}
	return strconv.FormatFloat(f, 'G', -1, 64)
}

// LooksSerialized is the cheap prefix test applied before attempting a
// strict decode.
func LooksSerialized(s string) bool {
	if len(s) < 2 {
		return false
	}
	switch s[0] {
	case 'N':
		return s == "N;"
	case 'b', 'i', 'd', 's', 'a', 'O':
		return s[1] == ':'
	}
	return false
}

// Decode strictly parses a PHP-serialized payload. The whole input must be
// consumed; trailing bytes are an error. Anything that fails here is
// treated as plain text by the rewrite path.
func Decode(s string) (Value, error) {
	d := &decoder{s: s}
	v, err := d.value()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.s) {
		return nil, fmt.Errorf("trailing data at offset %d", d.pos)
	}
	return v, nil
}

type decoder struct {
	s   string
	pos int
}

func (d *decoder) value() (Value, error) {
	if d.pos >= len(d.s) {
		return nil, fmt.Errorf("unexpected end of input at offset %d", d.pos)
	}

	switch d.s[d.pos] {
	case 'N':
		if err := d.expect("N;"); err != nil {
			return nil, err
		}
		return Null{}, nil

	case 'b':
		if err := d.expect("b:"); err != nil {
			return nil, err
		}
		raw, err := d.until(';')
		if err != nil {
			return nil, err
		}
		switch raw {
		case "0":
			return Bool(false), nil
		case "1":
			return Bool(true), nil
		}
		return nil, fmt.Errorf("invalid boolean %q at offset %d", raw, d.pos)

	case 'i':
		if err := d.expect("i:"); err != nil {
			return nil, err
		}
		raw, err := d.until(';')
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q at offset %d", raw, d.pos)
		}
		return Int(n), nil

	case 'd':
		if err := d.expect("d:"); err != nil {
			return nil, err
		}
		raw, err := d.until(';')
		if err != nil {
			return nil, err
		}
		return parsePHPFloat(raw, d.pos)

	case 's':
		if err := d.expect("s:"); err != nil {
			return nil, err
		}
		return d.stringBody()

	case 'a':
		if err := d.expect("a:"); err != nil {
			return nil, err
		}
		count, err := d.count()
		if err != nil {
			return nil, err
		}
		pairs, err := d.pairs(count)
		if err != nil {
			return nil, err
		}
		return Array{Pairs: pairs}, nil

	case 'O':
		if err := d.expect("O:"); err != nil {
			return nil, err
		}
		name, err := d.stringBodyRaw()
		if err != nil {
			return nil, err
		}
		if err := d.expect(":"); err != nil {
			return nil, err
		}
		count, err := d.count()
		if err != nil {
			return nil, err
		}
		pairs, err := d.pairs(count)
		if err != nil {
			return nil, err
		}
		return Object{Class: name, Pairs: pairs}, nil
	}

	return nil, fmt.Errorf("unknown token %q at offset %d", d.s[d.pos], d.pos)
}

// pairs reads `count` key/value pairs wrapped in braces. Keys must be
// integers or strings per the PHP grammar.
func (d *decoder) pairs(count int) ([]Pair, error) {
	if err := d.expect("{"); err != nil {
		return nil, err
	}
	pairs := make([]Pair, 0, count)
	for i := 0; i < count; i++ {
		key, err := d.value()
		if err != nil {
			return nil, err
		}
		switch key.(type) {
		case Int, String:
		default:
			return nil, fmt.Errorf("invalid key type %T at offset %d", key, d.pos)
		}
		val, err := d.value()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, Pair{Key: key, Value: val})
	}
	if err := d.expect("}"); err != nil {
		return nil, err
	}
	return pairs, nil
}

// stringBody parses `len:"bytes";` after the `s:` tag.
func (d *decoder) stringBody() (Value, error) {
	raw, err := d.stringBodyRaw()
	if err != nil {
		return nil, err
	}
	if err := d.expect(";"); err != nil {
		return nil, err
	}
	return String(raw), nil
}

// stringBodyRaw parses `len:"bytes"`, shared by strings and object class
// names. The declared length is a byte count and the quotes are literal.
func (d *decoder) stringBodyRaw() (string, error) {
	length, err := d.count()
	if err != nil {
		return "", err
	}
	if err := d.expect(`"`); err != nil {
		return "", err
	}
	if d.pos+length > len(d.s) {
		return "", fmt.Errorf("string length %d exceeds input at offset %d", length, d.pos)
	}
	raw := d.s[d.pos : d.pos+length]
	d.pos += length
	if err := d.expect(`"`); err != nil {
		return "", err
	}
	return raw, nil
}

// count parses a non-negative decimal followed by ':'.
func (d *decoder) count() (int, error) {
	raw, err := d.until(':')
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid length %q at offset %d", raw, d.pos)
	}
	return n, nil
}

func (d *decoder) expect(token string) error {
	if !strings.HasPrefix(d.s[d.pos:], token) {
		return fmt.Errorf("expected %q at offset %d", token, d.pos)
	}
	d.pos += len(token)
	return nil
}

// until consumes up to and including delim and returns the bytes before it.
func (d *decoder) until(delim byte) (string, error) {
	idx := strings.IndexByte(d.s[d.pos:], delim)
	if idx < 0 {
		return "", fmt.Errorf("missing %q after offset %d", delim, d.pos)
	}
	raw := d.s[d.pos : d.pos+idx]
	d.pos += idx + 1
	return raw, nil
}

func parsePHPFloat(raw string, pos int) (Value, error) {
	switch raw {
	case "INF":
		return Float(math.Inf(1)), nil
	case "-INF":
		return Float(math.Inf(-1)), nil
	case "NAN":
		return Float(math.NaN()), nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid float %q at offset %d", raw, pos)
	}
	return Float(f), nil
}

// Rewrite walks a decoded value and substring-replaces search with repl in
// every string leaf. Keys and object class names are left untouched. A
// string leaf that is itself a serialized payload (a nested serialization)
// is decoded and rewritten structurally so its inner lengths stay correct.
// Returns the (possibly new) value and whether anything changed.
func Rewrite(v Value, search, repl string) (Value, bool) {
	switch node := v.(type) {
	case String:
		s := string(node)
		if LooksSerialized(s) {
			if inner, err := Decode(s); err == nil {
				rewritten, changed := Rewrite(inner, search, repl)
				if !changed {
					return v, false
				}
				return String(Encode(rewritten)), true
			}
		}
		if !strings.Contains(s, search) {
			return v, false
		}
		return String(strings.ReplaceAll(s, search, repl)), true

	case Array:
		pairs, changed := rewritePairs(node.Pairs, search, repl)
		if !changed {
			return v, false
		}
		return Array{Pairs: pairs}, true

	case Object:
		pairs, changed := rewritePairs(node.Pairs, search, repl)
		if !changed {
			return v, false
		}
		return Object{Class: node.Class, Pairs: pairs}, true

	default:
		return v, false
	}
}

func rewritePairs(pairs []Pair, search, repl string) ([]Pair, bool) {
	changed := false
	out := make([]Pair, len(pairs))
	for i, p := range pairs {
		nv, c := Rewrite(p.Value, search, repl)
		out[i] = Pair{Key: p.Key, Value: nv}
		changed = changed || c
	}
	return out, changed
}
