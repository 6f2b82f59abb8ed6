package jsoncanon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"unicode/utf8"
)

// MarshalCanonical serializes v as canonical JSON: object keys sorted
// lexicographically, no inserted whitespace, matching the source format's
// separators convention (",", ":"). Non-finite floats are written as the
// bare tokens NaN, Infinity, -Infinity rather than failing, following the
// ported format's own permissive float encoding; ParseCanonical accepts
// these tokens back.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		buf.WriteString(formatJSONFloat(v.f))
	case KindString:
		data, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(data)
	case KindSeq:
		buf.WriteByte('[')
		for i, e := range v.seq {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		keys := sortedKeys(v.m)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kd, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kd)
			buf.WriteByte(':')
			if err := writeCanonical(buf, v.m[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("jsoncanon: unknown kind %v", v.kind)
	}
	return nil
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatJSONFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

// ParseCanonical parses a JSON document (as produced by MarshalCanonical, or
// any equivalent encoder) into a Value tree. In addition to standard JSON
// grammar, it accepts the bare tokens NaN, Infinity, and -Infinity wherever
// a number is expected.
func ParseCanonical(data []byte) (Value, error) {
	p := &parser{data: data}
	p.skipSpace()
	v, err := p.parseValue()
	if err != nil {
		return Value{}, err
	}
	p.skipSpace()
	if p.pos != len(p.data) {
		return Value{}, fmt.Errorf("jsoncanon: trailing data at offset %d", p.pos)
	}
	return v, nil
}

type parser struct {
	data []byte
	pos  int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) errf(format string, args ...any) error {
	return fmt.Errorf("jsoncanon: at offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) parseValue() (Value, error) {
	if p.pos >= len(p.data) {
		return Value{}, p.errf("unexpected end of input")
	}
	switch c := p.data[p.pos]; {
	case c == '{':
		return p.parseObject()
	case c == '[':
		return p.parseArray()
	case c == '"':
		s, err := p.parseString()
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case c == 't':
		return p.parseLiteral("true", Bool(true))
	case c == 'f':
		return p.parseLiteral("false", Bool(false))
	case c == 'n':
		return p.parseLiteral("null", Null())
	case c == 'N':
		return p.parseLiteral("NaN", Float(math.NaN()))
	case c == 'I':
		return p.parseLiteral("Infinity", Float(math.Inf(1)))
	case c == '-' && p.hasPrefix("-Infinity"):
		return p.parseLiteral("-Infinity", Float(math.Inf(-1)))
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return Value{}, p.errf("unexpected character %q", c)
	}
}

func (p *parser) hasPrefix(s string) bool {
	return bytes.HasPrefix(p.data[p.pos:], []byte(s))
}

func (p *parser) parseLiteral(lit string, v Value) (Value, error) {
	if !p.hasPrefix(lit) {
		return Value{}, p.errf("expected %q", lit)
	}
	p.pos += len(lit)
	return v, nil
}

func (p *parser) parseNumber() (Value, error) {
	start := p.pos
	isFloat := false
	if p.pos < len(p.data) && p.data[p.pos] == '-' {
		p.pos++
	}
	for p.pos < len(p.data) && p.data[p.pos] >= '0' && p.data[p.pos] <= '9' {
		p.pos++
	}
	if p.pos < len(p.data) && p.data[p.pos] == '.' {
		isFloat = true
		p.pos++
		for p.pos < len(p.data) && p.data[p.pos] >= '0' && p.data[p.pos] <= '9' {
			p.pos++
		}
	}
	if p.pos < len(p.data) && (p.data[p.pos] == 'e' || p.data[p.pos] == 'E') {
		isFloat = true
		p.pos++
		if p.pos < len(p.data) && (p.data[p.pos] == '+' || p.data[p.pos] == '-') {
			p.pos++
		}
		for p.pos < len(p.data) && p.data[p.pos] >= '0' && p.data[p.pos] <= '9' {
			p.pos++
		}
	}
	text := string(p.data[start:p.pos])
	if text == "" || text == "-" {
		return Value{}, p.errf("invalid number")
	}
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, p.errf("invalid number %q: %s", text, err)
		}
		return Float(f), nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		// Falls outside int64 range; preserve as a float rather than failing.
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil {
			return Value{}, p.errf("invalid number %q: %s", text, err)
		}
		return Float(f), nil
	}
	return Int(i), nil
}

func (p *parser) parseString() (string, error) {
	if p.data[p.pos] != '"' {
		return "", p.errf("expected string")
	}
	p.pos++
	var sb []byte
	for {
		if p.pos >= len(p.data) {
			return "", p.errf("unterminated string")
		}
		c := p.data[p.pos]
		if c == '"' {
			p.pos++
			return string(sb), nil
		}
		if c == '\\' {
			p.pos++
			if p.pos >= len(p.data) {
				return "", p.errf("unterminated escape")
			}
			switch e := p.data[p.pos]; e {
			case '"', '\\', '/':
				sb = append(sb, e)
				p.pos++
			case 'n':
				sb = append(sb, '\n')
				p.pos++
			case 't':
				sb = append(sb, '\t')
				p.pos++
			case 'r':
				sb = append(sb, '\r')
				p.pos++
			case 'b':
				sb = append(sb, '\b')
				p.pos++
			case 'f':
				sb = append(sb, '\f')
				p.pos++
			case 'u':
				if p.pos+5 > len(p.data) {
					return "", p.errf("short unicode escape")
				}
				r, err := strconv.ParseUint(string(p.data[p.pos+1:p.pos+5]), 16, 32)
				if err != nil {
					return "", p.errf("invalid unicode escape: %s", err)
				}
				var rb [utf8.UTFMax]byte
				n := utf8.EncodeRune(rb[:], rune(r))
				sb = append(sb, rb[:n]...)
				p.pos += 5
			default:
				return "", p.errf("invalid escape %q", e)
			}
			continue
		}
		sb = append(sb, c)
		p.pos++
	}
}

func (p *parser) parseArray() (Value, error) {
	p.pos++ // '['
	var seq []Value
	p.skipSpace()
	if p.pos < len(p.data) && p.data[p.pos] == ']' {
		p.pos++
		return Seq(seq), nil
	}
	for {
		p.skipSpace()
		v, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		seq = append(seq, v)
		p.skipSpace()
		if p.pos >= len(p.data) {
			return Value{}, p.errf("unterminated array")
		}
		switch p.data[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return Seq(seq), nil
		default:
			return Value{}, p.errf("expected ',' or ']'")
		}
	}
}

func (p *parser) parseObject() (Value, error) {
	p.pos++ // '{'
	m := make(map[string]Value)
	p.skipSpace()
	if p.pos < len(p.data) && p.data[p.pos] == '}' {
		p.pos++
		return Map(m), nil
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.data) || p.data[p.pos] != '"' {
			return Value{}, p.errf("expected string key")
		}
		k, err := p.parseString()
		if err != nil {
			return Value{}, err
		}
		p.skipSpace()
		if p.pos >= len(p.data) || p.data[p.pos] != ':' {
			return Value{}, p.errf("expected ':'")
		}
		p.pos++
		p.skipSpace()
		v, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		m[k] = v
		p.skipSpace()
		if p.pos >= len(p.data) {
			return Value{}, p.errf("unterminated object")
		}
		switch p.data[p.pos] {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return Map(m), nil
		default:
			return Value{}, p.errf("expected ',' or '}'")
		}
	}
}
