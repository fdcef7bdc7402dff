package css

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// numberPattern matches the numeric part of a CSS number, percentage or
// dimension token: optional sign, integer/fraction, optional exponent.
var numberPattern = regexp.MustCompile(`^[+-]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)(?:[eE][+-]?[0-9]+)?`)

// FormatIdent re-serializes a decoded identifier with CSS escaping rules so
// that characters which are not valid in identifiers stay syntactically
// correct in output.
func FormatIdent(ident string) string {
	if ident == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(ident))

	rest := ident
	switch {
	case strings.HasPrefix(ident, "--"):
		b.WriteString("--")
		rest = ident[2:]
	case ident == "-":
		return `\-`
	default:
		if ident[0] == '-' {
			b.WriteByte('-')
			rest = ident[1:]
		}
		if len(rest) > 0 && rest[0] >= '0' && rest[0] <= '9' {
			// leading digit needs a hex escape
			b.WriteString(`\` + strconv.FormatUint(uint64(rest[0]), 16) + " ")
			rest = rest[1:]
		}
	}
	serializeName(&b, rest)

	// a trailing hex escape carries a terminating space which has no one to
	// separate from
	return strings.TrimRight(b.String(), " \t\r\n")
}

// FormatQuotedString wraps a decoded string value in double quotes, escaping
// as necessary.
func FormatQuotedString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"':
			b.WriteString(`\"`)
		case r == '\\':
			b.WriteString(`\\`)
		case r == 0:
			b.WriteRune(unicode.ReplacementChar)
		case r <= 0x1f || r == 0x7f:
			b.WriteString(`\` + strconv.FormatUint(uint64(r), 16) + " ")
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func serializeName(b *strings.Builder, s string) {
	for _, r := range s {
		switch {
		case r == 0:
			b.WriteRune(unicode.ReplacementChar)
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r >= 0x80:
			b.WriteRune(r)
		case r <= 0x1f || r == 0x7f:
			b.WriteString(`\` + strconv.FormatUint(uint64(r), 16) + " ")
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
}

// unescape decodes CSS backslash escapes in raw token text. When inString is
// set, escaped newlines are treated as line continuations and removed.
func unescape(s string, inString bool) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '\\' {
			r, size := utf8.DecodeRuneInString(s[i:])
			b.WriteRune(r)
			i += size
			continue
		}
		i++
		if i >= len(s) {
			b.WriteRune(unicode.ReplacementChar)
			break
		}
		if isNewline(s[i]) {
			if inString {
				// line continuation
				i = skipNewline(s, i)
				continue
			}
			b.WriteRune(unicode.ReplacementChar)
			i = skipNewline(s, i)
			continue
		}
		if isHexDigit(s[i]) {
			j := i
			for j < len(s) && j-i < 6 && isHexDigit(s[j]) {
				j++
			}
			v, _ := strconv.ParseUint(s[i:j], 16, 32)
			i = j
			// one whitespace after a hex escape belongs to the escape
			if i < len(s) {
				switch {
				case isNewline(s[i]):
					i = skipNewline(s, i)
				case s[i] == ' ' || s[i] == '\t':
					i++
				}
			}
			if v == 0 || v > unicode.MaxRune || (v >= 0xd800 && v <= 0xdfff) {
				b.WriteRune(unicode.ReplacementChar)
			} else {
				b.WriteRune(rune(v))
			}
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		b.WriteRune(r)
		i += size
	}
	return b.String()
}

// decodeString strips the surrounding quotes from a raw string token and
// decodes escapes. The closing quote may be missing at end of input.
func decodeString(raw string) string {
	if len(raw) == 0 {
		return ""
	}
	quote := raw[0]
	if quote != '"' && quote != '\'' {
		return unescape(raw, true)
	}
	body := raw[1:]
	if len(body) > 0 && body[len(body)-1] == quote {
		body = body[:len(body)-1]
	}
	return unescape(body, true)
}

// decodeURLValue extracts the inner value of a raw url(...) token. The lexer
// consumes the quoted form url("...") as a single token too, so the inner
// content may itself be a quoted string.
func decodeURLValue(raw string) string {
	if i := strings.IndexByte(raw, '('); i >= 0 {
		raw = raw[i+1:]
	}
	raw = strings.TrimSuffix(raw, ")")
	raw = strings.TrimSpace(raw)
	if len(raw) > 0 && (raw[0] == '"' || raw[0] == '\'') {
		return decodeString(raw)
	}
	return unescape(raw, false)
}

// isIdentSequence reports whether a decoded name could have been written as
// a bare identifier. Hash tokens need this to distinguish ID selectors from
// hex color values.
func isIdentSequence(s string) bool {
	if s == "" {
		return false
	}
	rest := s
	if s[0] == '-' {
		if len(s) == 1 {
			return false
		}
		rest = s[1:]
		if rest[0] == '-' {
			rest = rest[1:]
		} else if !isIdentStart(rune(rest[0])) && rest[0] < 0x80 {
			return false
		}
	} else if !isIdentStart(rune(s[0])) && s[0] < 0x80 {
		return false
	}
	for _, r := range rest {
		if !isIdentChar(r) {
			return false
		}
	}
	return true
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r >= 0x80
}

func isIdentChar(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9') || r == '-'
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isNewline(c byte) bool {
	return c == '\n' || c == '\r' || c == '\f'
}

func skipNewline(s string, i int) int {
	if s[i] == '\r' && i+1 < len(s) && s[i+1] == '\n' {
		return i + 2
	}
	return i + 1
}

// formatNumeric re-serializes a numeric token from its parsed value. An
// explicit '+' sign survives only for non-negative values; the unit suffix
// (either "%" or a dimension unit) is appended verbatim.
func formatNumeric(raw string) string {
	num := numberPattern.FindString(raw)
	if num == "" {
		// not a number after all, keep the source bytes
		return raw
	}
	unit := raw[len(num):]

	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return raw
	}

	var b strings.Builder
	if num[0] == '+' && v >= 0 {
		b.WriteByte('+')
	}
	b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	b.WriteString(unit)
	return b.String()
}
