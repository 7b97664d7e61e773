package forecasts

import (
	"fmt"
	"strconv"
	"strings"
)

// Attribute is one "Type name value[, value...];" statement of a DAS entity.
// Only the first value is kept.
type Attribute struct {
	Type   string
	Name   string
	Text   string
	Number float64
	// Numeric is true when Type is a floating point or integer tag and
	// Number holds the parsed value.
	Numeric bool
	Line    int
}

// Entity is a named attribute block: a coordinate axis or a variable.
type Entity struct {
	Name  string
	Attrs map[string]Attribute
}

// ParseIssue is a statement the parser read but could not extract a value
// from. Issues never fail a parse.
type ParseIssue struct {
	Line   int
	Text   string
	Reason string
}

// DAS is a parsed attribute description.
type DAS struct {
	Entities map[string]*Entity
	Order    []string
	Issues   []ParseIssue
}

var (
	textTags    = map[string]bool{"String": true, "Url": true}
	numericTags = map[string]bool{
		"Float32": true, "Float64": true,
		"Byte": true, "Int16": true, "UInt16": true, "Int32": true, "UInt32": true,
	}
)

// ParseDAS parses a GrADS Data Server attribute description:
//
//	Attributes {
//	    lat {
//	        String grads_size "721";
//	        Float64 minimum -90.0;
//	    }
//	}
//
// String and Url tags yield text; floating point and integer tags yield
// numbers. Statements with any other tag, or numeric tags whose value does
// not parse, are reported as ParseIssues. Nested containers are skipped and
// reported. Structural errors return a *ParseError naming the line.
func ParseDAS(text string) (*DAS, error) {
	p := &parser{lex: newLexer("das", text, "{};,")}
	das := &DAS{Entities: make(map[string]*Entity)}

	head, err := p.expectWord()
	if err != nil {
		return nil, err
	}
	if head.text != "Attributes" {
		return nil, p.lex.errorf(head.line, "expected \"Attributes\", found %s", head)
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}

	for {
		t, err := p.lookahead()
		if err != nil {
			return nil, err
		}
		if t.kind == tokPunct && t.text == "}" {
			p.next()
			break
		}
		if t.kind == tokEOF {
			return nil, p.lex.errorf(t.line, "unexpected end of input inside Attributes")
		}
		ent, err := das.parseEntity(p)
		if err != nil {
			return nil, err
		}
		if _, dup := das.Entities[ent.Name]; !dup {
			das.Order = append(das.Order, ent.Name)
		}
		das.Entities[ent.Name] = ent
	}

	if t, err := p.next(); err != nil {
		return nil, err
	} else if t.kind != tokEOF {
		return nil, p.lex.errorf(t.line, "unexpected %s after Attributes block", t)
	}
	return das, nil
}

func (d *DAS) parseEntity(p *parser) (*Entity, error) {
	name, err := p.expectWord()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}

	ent := &Entity{Name: name.text, Attrs: make(map[string]Attribute)}
	for {
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		switch {
		case t.kind == tokPunct && t.text == "}":
			return ent, nil
		case t.kind == tokEOF:
			return nil, p.lex.errorf(t.line, "unexpected end of input inside %q", ent.Name)
		case t.kind != tokWord:
			return nil, p.lex.errorf(t.line, "expected an attribute type, found %s", t)
		}

		la, err := p.lookahead()
		if err != nil {
			return nil, err
		}
		if la.kind == tokPunct && la.text == "{" {
			// Nested container, e.g. DODS_EXTRA inside an entity.
			if err := skipBlock(p); err != nil {
				return nil, err
			}
			d.Issues = append(d.Issues, ParseIssue{
				Line:   t.line,
				Text:   p.lex.lineText(t.line),
				Reason: fmt.Sprintf("nested container %q in %q skipped", t.text, ent.Name),
			})
			continue
		}

		attr, err := parseStatement(p, t)
		if err != nil {
			return nil, err
		}

		switch {
		case textTags[attr.Type]:
			ent.Attrs[attr.Name] = attr
		case numericTags[attr.Type]:
			n, perr := strconv.ParseFloat(attr.Text, 64)
			if perr != nil {
				d.Issues = append(d.Issues, ParseIssue{
					Line:   attr.Line,
					Text:   p.lex.lineText(attr.Line),
					Reason: fmt.Sprintf("%s value %q is not a number", attr.Type, attr.Text),
				})
				continue
			}
			attr.Number = n
			attr.Numeric = true
			ent.Attrs[attr.Name] = attr
		default:
			d.Issues = append(d.Issues, ParseIssue{
				Line:   attr.Line,
				Text:   p.lex.lineText(attr.Line),
				Reason: fmt.Sprintf("unsupported attribute type %q", attr.Type),
			})
		}
	}
}

// parseStatement reads "name value[, value...];" after the type tag.
func parseStatement(p *parser, typeTok token) (Attribute, error) {
	name, err := p.expectWord()
	if err != nil {
		return Attribute{}, err
	}
	attr := Attribute{Type: typeTok.text, Name: name.text, Line: typeTok.line}

	first := true
	for {
		v, err := p.next()
		if err != nil {
			return Attribute{}, err
		}
		if v.kind != tokWord && v.kind != tokString {
			return Attribute{}, p.lex.errorf(v.line, "expected a value for %q, found %s", attr.Name, v)
		}
		if first {
			attr.Text = v.text
			first = false
		}

		sep, err := p.next()
		if err != nil {
			return Attribute{}, err
		}
		if sep.kind == tokPunct && sep.text == ";" {
			return attr, nil
		}
		if sep.kind != tokPunct || sep.text != "," {
			return Attribute{}, p.lex.errorf(sep.line, "expected \";\" after %q, found %s", attr.Name, sep)
		}
	}
}

// skipBlock consumes a balanced { ... } starting at the next token.
func skipBlock(p *parser) error {
	depth := 0
	for {
		t, err := p.next()
		if err != nil {
			return err
		}
		if t.kind == tokEOF {
			return p.lex.errorf(t.line, "unexpected end of input inside nested container")
		}
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "{":
			depth++
		case "}":
			depth--
			if depth == 0 {
				return nil
			}
		}
	}
}

// textInt returns an attribute as an integer whether it was declared as a
// number or as text ("81").
func (a Attribute) textInt() (int, bool) {
	if a.Numeric {
		return int(a.Number), true
	}
	n, err := strconv.Atoi(strings.TrimSpace(a.Text))
	if err != nil {
		return 0, false
	}
	return n, true
}
