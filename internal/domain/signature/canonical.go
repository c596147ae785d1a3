package signature

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// Canonical renders a JSON document in the string form existing clients sign:
// the text a Python interpreter prints for str() of the parsed value. Object
// members keep document order, strings use Python quoting and escapes,
// integers keep every digit, and true/false/null become True/False/None.
// A repeated object key keeps its first position and its last value, and an
// unpaired \uD800-\uDFFF escape survives as a lone surrogate.
func Canonical(body []byte) ([]byte, error) {
	r := renderer{dec: json.NewDecoder(bytes.NewReader(body)), body: body}
	r.dec.UseNumber()

	var buf bytes.Buffer
	if err := r.value(&buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if _, err := r.dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after document", ErrMalformedPayload)
	}
	return buf.Bytes(), nil
}

type renderer struct {
	dec  *json.Decoder
	body []byte
}

// token returns the next token and, for strings, the code points of the
// literal as written. The decoder replaces lone surrogates with U+FFFD, so
// strings are decoded again from the raw bytes.
func (r *renderer) token() (json.Token, []rune, error) {
	from := r.dec.InputOffset()
	tok, err := r.dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if _, ok := tok.(string); !ok {
		return tok, nil, nil
	}
	raw := bytes.TrimLeft(r.body[from:r.dec.InputOffset()], " \t\r\n,:")
	runes, err := unquote(raw)
	if err != nil {
		return nil, nil, err
	}
	return tok, runes, nil
}

func (r *renderer) value(buf *bytes.Buffer) error {
	tok, runes, err := r.token()
	if err != nil {
		return err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '[':
			return r.array(buf)
		case '{':
			return r.object(buf)
		}
		return fmt.Errorf("unexpected delimiter %q", rune(v))
	case string:
		writePyString(buf, runes)
	case json.Number:
		s, err := pyNumber(v)
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case bool:
		if v {
			buf.WriteString("True")
		} else {
			buf.WriteString("False")
		}
	case nil:
		buf.WriteString("None")
	default:
		return fmt.Errorf("unexpected token %T", tok)
	}
	return nil
}

func (r *renderer) array(buf *bytes.Buffer) error {
	buf.WriteByte('[')
	for first := true; r.dec.More(); first = false {
		if !first {
			buf.WriteString(", ")
		}
		if err := r.value(buf); err != nil {
			return err
		}
	}
	if _, err := r.dec.Token(); err != nil {
		return err
	}
	buf.WriteByte(']')
	return nil
}

type member struct {
	key []byte
	val []byte
}

func (r *renderer) object(buf *bytes.Buffer) error {
	var (
		members []member
		index   = make(map[string]int)
	)
	for r.dec.More() {
		tok, runes, err := r.token()
		if err != nil {
			return err
		}
		if _, ok := tok.(string); !ok {
			return fmt.Errorf("object key is %T", tok)
		}
		var key, val bytes.Buffer
		writePyString(&key, runes)
		if err := r.value(&val); err != nil {
			return err
		}
		if i, seen := index[key.String()]; seen {
			members[i].val = val.Bytes()
			continue
		}
		index[key.String()] = len(members)
		members = append(members, member{key: key.Bytes(), val: val.Bytes()})
	}
	if _, err := r.dec.Token(); err != nil {
		return err
	}
	buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.Write(m.key)
		buf.WriteString(": ")
		buf.Write(m.val)
	}
	buf.WriteByte('}')
	return nil
}

// unquote decodes a JSON string literal the decoder has already validated.
// Surrogate escapes that do not form a pair are kept as their own code point.
func unquote(raw []byte) ([]rune, error) {
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return nil, fmt.Errorf("string literal %q", raw)
	}
	s := raw[1 : len(raw)-1]
	out := make([]rune, 0, len(s))
	for len(s) > 0 {
		if s[0] != '\\' {
			c, n := utf8.DecodeRune(s)
			out = append(out, c)
			s = s[n:]
			continue
		}
		if len(s) < 2 {
			return nil, errors.New("truncated escape")
		}
		switch s[1] {
		case '"', '\\', '/':
			out = append(out, rune(s[1]))
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'u':
			c, ok := hex4(s[2:])
			if !ok {
				return nil, errors.New("bad \\u escape")
			}
			s = s[6:]
			if utf16.IsSurrogate(c) && c < 0xdc00 && len(s) >= 6 && s[0] == '\\' && s[1] == 'u' {
				if lo, ok := hex4(s[2:]); ok && lo >= 0xdc00 && lo <= 0xdfff {
					out = append(out, utf16.DecodeRune(c, lo))
					s = s[6:]
					continue
				}
			}
			out = append(out, c)
			continue
		default:
			return nil, fmt.Errorf("bad escape %q", s[:2])
		}
		s = s[2:]
	}
	return out, nil
}

func hex4(s []byte) (rune, bool) {
	if len(s) < 4 {
		return 0, false
	}
	v, err := strconv.ParseUint(string(s[:4]), 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(v), true
}

// pyNumber formats a JSON number literal: integers exactly, everything with a
// fraction or exponent as a float using the shortest round-trip digits.
func pyNumber(n json.Number) (string, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		i, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return "", fmt.Errorf("invalid integer %q", s)
		}
		return i.String(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !math.IsInf(f, 0) {
		return "", fmt.Errorf("invalid float %q: %w", s, err)
	}
	return pyFloat(f), nil
}

func pyFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, _ := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return sci
	}
	fixed := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(fixed, '.') {
		fixed += ".0"
	}
	return fixed
}

// quoteFor picks the quote character Python's repr uses for s.
func quoteFor[T byte | rune](s []T) T {
	if slices.Contains(s, '\'') && !slices.Contains(s, '"') {
		return '"'
	}
	return '\''
}

func writePyString(buf *bytes.Buffer, s []rune) {
	q := quoteFor(s)
	buf.WriteRune(q)
	for _, r := range s {
		switch {
		case r == q || r == '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case r == '\t':
			buf.WriteString(`\t`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(buf, `\x%02x`, r)
		case r < utf8.RuneSelf || unicode.IsPrint(r):
			buf.WriteRune(r)
		case r <= 0xff:
			fmt.Fprintf(buf, `\x%02x`, r)
		case r <= 0xffff:
			fmt.Fprintf(buf, `\u%04x`, r)
		default:
			fmt.Fprintf(buf, `\U%08x`, r)
		}
	}
	buf.WriteRune(q)
}

// ByteRepr renders b the way Python prints a bytes literal, e.g. b'abc\n'.
func ByteRepr(b []byte) string {
	var buf strings.Builder
	q := quoteFor(b)
	buf.WriteString("b")
	buf.WriteByte(q)
	for _, c := range b {
		switch {
		case c == q || c == '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case c == '\t':
			buf.WriteString(`\t`)
		case c == '\n':
			buf.WriteString(`\n`)
		case c == '\r':
			buf.WriteString(`\r`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&buf, `\x%02x`, c)
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(q)
	return buf.String()
}
