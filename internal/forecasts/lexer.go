package forecasts

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokString
	tokPunct
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	line int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokString:
		return fmt.Sprintf("string %q", t.text)
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

// ParseError is a structural failure in a DAS or DDS document.
type ParseError struct {
	Format string
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s line %d: %s: %q", e.Format, e.Line, e.Reason, e.Text)
}

// lexer splits DODS text into words, quoted strings and single-character
// punctuation. The punctuation set differs between DAS and DDS.
type lexer struct {
	src    string
	pos    int
	line   int
	punct  string
	format string
	lines  []string
}

func newLexer(format, src, punct string) *lexer {
	return &lexer{
		src:    src,
		line:   1,
		punct:  punct,
		format: format,
		lines:  strings.Split(src, "\n"),
	}
}

func (l *lexer) lineText(n int) string {
	if n < 1 || n > len(l.lines) {
		return ""
	}
	return strings.TrimSpace(l.lines[n-1])
}

func (l *lexer) errorf(line int, format string, args ...any) *ParseError {
	return &ParseError{
		Format: l.format,
		Line:   line,
		Text:   l.lineText(line),
		Reason: fmt.Sprintf(format, args...),
	}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\n' {
			l.line++
			l.pos++
			continue
		}
		if c == ' ' || c == '\t' || c == '\r' {
			l.pos++
			continue
		}
		break
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: l.line}, nil
	}

	c := l.src[l.pos]
	switch {
	case strings.IndexByte(l.punct, c) >= 0:
		l.pos++
		return token{kind: tokPunct, text: string(c), line: l.line}, nil
	case c == '"':
		return l.quoted()
	default:
		start := l.pos
		for l.pos < len(l.src) {
			c = l.src[l.pos]
			if c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '"' || strings.IndexByte(l.punct, c) >= 0 {
				break
			}
			l.pos++
		}
		return token{kind: tokWord, text: l.src[start:l.pos], line: l.line}, nil
	}
}

func (l *lexer) quoted() (token, error) {
	startLine := l.line
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '\\':
			if l.pos+1 < len(l.src) {
				b.WriteByte(l.src[l.pos+1])
				l.pos += 2
				continue
			}
		case '"':
			l.pos++
			return token{kind: tokString, text: b.String(), line: startLine}, nil
		case '\n':
			l.line++
		}
		b.WriteByte(c)
		l.pos++
	}
	return token{}, l.errorf(startLine, "unterminated string")
}

// parser wraps a lexer with one token of lookahead.
type parser struct {
	lex  *lexer
	peek *token
}

func (p *parser) next() (token, error) {
	if p.peek != nil {
		t := *p.peek
		p.peek = nil
		return t, nil
	}
	return p.lex.next()
}

func (p *parser) lookahead() (token, error) {
	if p.peek == nil {
		t, err := p.lex.next()
		if err != nil {
			return token{}, err
		}
		p.peek = &t
	}
	return *p.peek, nil
}

func (p *parser) expectPunct(s string) (token, error) {
	t, err := p.next()
	if err != nil {
		return t, err
	}
	if t.kind != tokPunct || t.text != s {
		return t, p.lex.errorf(t.line, "expected %q, found %s", s, t)
	}
	return t, nil
}

func (p *parser) expectWord() (token, error) {
	t, err := p.next()
	if err != nil {
		return t, err
	}
	if t.kind != tokWord {
		return t, p.lex.errorf(t.line, "expected a name, found %s", t)
	}
	return t, nil
}
