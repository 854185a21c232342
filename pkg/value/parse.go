package value

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	commentPattern  = regexp.MustCompile(`^(//[^\r\n]*|/\*[\s\S]*?\*/)`)
	floatPattern    = regexp.MustCompile(`^-?\d*\.\d+`)
	intPattern      = regexp.MustCompile(`^-?\d+`)
	bareKeyPattern  = regexp.MustCompile(`^[A-Za-z_$][\w$.\-]*`)
	literalBoundary = regexp.MustCompile(`^[\w$]`)
)

// Parse parses text into a Value. Line and block comments are accepted
// between tokens, object keys may be unquoted and trailing commas are
// allowed. Input that matches no token is a ParseError, as is anything left
// over after the root value.
func Parse(text string) (*Value, error) {
	p := &parser{src: text}
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	p.skip()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected trailing input")
	}
	return v, nil
}

// MustParse is like Parse but panics on error. Intended for literals in
// tests and static data.
func MustParse(text string) *Value {
	v, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return v
}

type parser struct {
	src string
	pos int
}

func (p *parser) rest() string {
	return p.src[p.pos:]
}

func (p *parser) errorf(reason string) *ParseError {
	return &ParseError{Offset: p.pos, Reason: reason}
}

// skip advances past whitespace and comments.
func (p *parser) skip() {
	for {
		trimmed := strings.TrimLeft(p.rest(), " \t\r\n")
		p.pos = len(p.src) - len(trimmed)
		loc := commentPattern.FindStringIndex(trimmed)
		if loc == nil {
			return
		}
		p.pos += loc[1]
	}
}

func (p *parser) literal(word string) bool {
	rest := p.rest()
	if !strings.HasPrefix(rest, word) {
		return false
	}
	if literalBoundary.MatchString(rest[len(word):]) {
		return false
	}
	p.pos += len(word)
	return true
}

func (p *parser) parseValue() (*Value, error) {
	p.skip()
	if p.pos >= len(p.src) {
		return nil, p.errorf("unexpected end of input")
	}
	switch {
	case p.src[p.pos] == '{':
		return p.parseObject()
	case p.literal("true"):
		return Bool(true), nil
	case p.literal("false"):
		return Bool(false), nil
	case p.literal("null"):
		return Null(), nil
	case p.src[p.pos] == '"' || p.src[p.pos] == '\'':
		s, err := p.parseString()
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case p.src[p.pos] == '[':
		return p.parseList()
	}
	if m := floatPattern.FindString(p.rest()); m != "" {
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return nil, p.errorf("invalid float literal " + m)
		}
		p.pos += len(m)
		return Float(f), nil
	}
	if m := intPattern.FindString(p.rest()); m != "" {
		i, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, p.errorf("invalid integer literal " + m)
		}
		p.pos += len(m)
		return Int64(i), nil
	}
	return nil, p.errorf("no token matched")
}

func (p *parser) parseString() (string, error) {
	start := p.pos
	quote := p.src[p.pos]
	p.pos++
	var sb strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return sb.String(), nil
		case c == '\\' && p.pos+1 < len(p.src):
			p.pos++
			switch esc := p.src[p.pos]; esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte(esc)
			}
		default:
			sb.WriteByte(c)
		}
		p.pos++
	}
	p.pos = start
	return "", p.errorf("unterminated string")
}

func (p *parser) parseKey() (string, error) {
	p.skip()
	if p.pos < len(p.src) && (p.src[p.pos] == '"' || p.src[p.pos] == '\'') {
		return p.parseString()
	}
	if m := bareKeyPattern.FindString(p.rest()); m != "" {
		p.pos += len(m)
		return m, nil
	}
	return "", p.errorf("expected attribute name")
}

func (p *parser) parseObject() (*Value, error) {
	obj := NewObject()
	p.pos++ // {
	for {
		p.skip()
		if p.pos >= len(p.src) {
			return nil, p.errorf("unterminated object")
		}
		if p.src[p.pos] == '}' {
			p.pos++
			return obj, nil
		}
		key, err := p.parseKey()
		if err != nil {
			return nil, err
		}
		p.skip()
		if p.pos >= len(p.src) || p.src[p.pos] != ':' {
			return nil, p.errorf("expected ':' after attribute " + strconv.Quote(key))
		}
		p.pos++
		item, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		obj.Set(key, item)
		p.skip()
		if p.pos < len(p.src) && p.src[p.pos] == ',' {
			p.pos++
			continue
		}
		if p.pos < len(p.src) && p.src[p.pos] == '}' {
			p.pos++
			return obj, nil
		}
		return nil, p.errorf("expected ',' or '}' in object")
	}
}

func (p *parser) parseList() (*Value, error) {
	list := NewList()
	p.pos++ // [
	for {
		p.skip()
		if p.pos >= len(p.src) {
			return nil, p.errorf("unterminated list")
		}
		if p.src[p.pos] == ']' {
			p.pos++
			return list, nil
		}
		item, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		list.Append(item)
		p.skip()
		if p.pos < len(p.src) && p.src[p.pos] == ',' {
			p.pos++
			continue
		}
		if p.pos < len(p.src) && p.src[p.pos] == ']' {
			p.pos++
			return list, nil
		}
		return nil, p.errorf("expected ',' or ']' in list")
	}
}
