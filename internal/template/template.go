package template

import (
	"fmt"
	"strings"

	"dicomsort/internal/failure"
	"dicomsort/internal/record"
	"dicomsort/internal/textutil"
)

// Filler replaces whitespace runs in resolved output.
const Filler = "_"

// Source supplies field values during expansion.
type Source interface {
	Get(field string) (any, error)
}

// Resolve expands tmpl against src and collapses whitespace runs into Filler
// so the result can be used as part of a path.
func Resolve(tmpl string, src Source) (string, error) {
	out, err := Expand(tmpl, src)
	if err != nil {
		return "", err
	}
	return textutil.CollapseWhitespace(out, Filler), nil
}

// Expand performs bounded recursive substitution without any sanitizing.
func Expand(tmpl string, src Source) (string, error) {
	passes := strings.Count(tmpl, "%")
	out := tmpl
	for i := 0; i < passes; i++ {
		next, changed, err := substitute(out, src)
		if err != nil {
			return "", err
		}
		out = next
		if !changed {
			break
		}
	}
	return out, nil
}

// Fields lists the field names referenced by tmpl, in order of appearance.
func Fields(tmpl string) []string {
	var names []string
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] != '%' {
			continue
		}
		tok, ok := parseToken(tmpl[i:])
		if !ok {
			continue
		}
		if tok.literal {
			i++
			continue
		}
		names = append(names, tok.field)
		i += tok.length - 1
	}
	return names
}

// Validate reports malformed tokens: a %( that never closes or a field
// reference without a known conversion character.
func Validate(tmpl string) error {
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] != '%' {
			continue
		}
		if i+1 < len(tmpl) && tmpl[i+1] == '(' {
			tok, ok := parseToken(tmpl[i:])
			if !ok {
				return fmt.Errorf("%w: malformed token at offset %d in %q", failure.ErrConfiguration, i, tmpl)
			}
			i += tok.length - 1
			continue
		}
		if i+1 < len(tmpl) && tmpl[i+1] == '%' {
			i++
		}
	}
	return nil
}

type token struct {
	field   string
	flags   string
	width   string
	prec    string
	verb    byte
	length  int
	literal bool
}

// parseToken reads one token at the start of s, which begins with '%'.
func parseToken(s string) (token, bool) {
	if len(s) < 2 {
		return token{}, false
	}
	if s[1] == '%' {
		return token{literal: true, length: 2}, true
	}
	if s[1] != '(' {
		return token{}, false
	}
	closeIdx := strings.IndexByte(s, ')')
	if closeIdx < 0 {
		return token{}, false
	}
	tok := token{field: s[2:closeIdx]}
	i := closeIdx + 1
	start := i
	for i < len(s) && strings.IndexByte("-+ #0", s[i]) >= 0 {
		i++
	}
	tok.flags = s[start:i]
	start = i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	tok.width = s[start:i]
	if i < len(s) && s[i] == '.' {
		i++
		start = i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		tok.prec = "." + s[start:i]
	}
	for i < len(s) && strings.IndexByte("hlL", s[i]) >= 0 {
		i++
	}
	if i >= len(s) || strings.IndexByte("srdiuxXoeEfFgGca", s[i]) < 0 {
		return token{}, false
	}
	tok.verb = s[i]
	tok.length = i + 1
	return tok, true
}

func substitute(s string, src Source) (string, bool, error) {
	var b strings.Builder
	b.Grow(len(s))
	changed := false
	for i := 0; i < len(s); {
		if s[i] != '%' {
			b.WriteByte(s[i])
			i++
			continue
		}
		tok, ok := parseToken(s[i:])
		if !ok {
			b.WriteByte(s[i])
			i++
			continue
		}
		changed = true
		if tok.literal {
			b.WriteByte('%')
			i += tok.length
			continue
		}
		value, err := src.Get(tok.field)
		if err != nil {
			return "", false, fmt.Errorf("%w: %s: %w", failure.ErrUnresolvableToken, tok.field, err)
		}
		text, err := format(tok, value)
		if err != nil {
			return "", false, err
		}
		b.WriteString(text)
		i += tok.length
	}
	return b.String(), changed, nil
}

func format(tok token, value any) (string, error) {
	spec := "%" + tok.flags + tok.width + tok.prec
	switch tok.verb {
	case 's', 'r', 'a':
		return fmt.Sprintf(spec+"s", record.Format(value)), nil
	case 'd', 'i', 'u':
		n, ok := record.Int(value)
		if !ok {
			return "", badValue(tok, value)
		}
		return fmt.Sprintf(spec+"d", n), nil
	case 'x', 'X', 'o':
		n, ok := record.Int(value)
		if !ok {
			return "", badValue(tok, value)
		}
		return fmt.Sprintf(spec+string(tok.verb), n), nil
	case 'e', 'E', 'f', 'F', 'g', 'G':
		f, ok := record.Float(value)
		if !ok {
			return "", badValue(tok, value)
		}
		verb := tok.verb
		if verb == 'F' {
			verb = 'f'
		}
		return fmt.Sprintf(spec+string(verb), f), nil
	case 'c':
		if n, ok := value.(int); ok {
			return fmt.Sprintf(spec+"c", rune(n)), nil
		}
		text := []rune(record.Format(value))
		if len(text) == 0 {
			return "", badValue(tok, value)
		}
		return fmt.Sprintf(spec+"c", text[0]), nil
	default:
		return "", badValue(tok, value)
	}
}

func badValue(tok token, value any) error {
	return fmt.Errorf("%w: %s: cannot format %q with %%%c", failure.ErrUnresolvableToken, tok.field, record.Format(value), tok.verb)
}
