package forecasts

import (
	"bufio"
	"strconv"
	"strings"
)

// Dim is one named dimension of a declared array.
type Dim struct {
	Name string
	Size int
}

// ArrayDecl is the declaration following an "ARRAY:" marker in a DDS.
type ArrayDecl struct {
	Type string
	Name string
	Dims []Dim
	Line int
}

// HasDim reports whether the array is indexed by the named dimension.
func (a ArrayDecl) HasDim(name string) bool {
	for _, d := range a.Dims {
		if d.Name == name {
			return true
		}
	}
	return false
}

// ParseDDS extracts every array declaration from a DDS. Only the line after
// each "ARRAY:" marker is parsed; map declarations and plain coordinate
// arrays are not needed. A marker without a well-formed declaration is a
// *ParseError.
func ParseDDS(text string) ([]ArrayDecl, error) {
	var (
		decls   []ArrayDecl
		pending bool
		lineNo  int
	)

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "ARRAY:" {
			if pending {
				return nil, &ParseError{Format: "dds", Line: lineNo, Text: line, Reason: "ARRAY: marker without a declaration"}
			}
			pending = true
			continue
		}
		if !pending {
			continue
		}
		pending = false

		decl, err := parseDecl(line, lineNo)
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if pending {
		return nil, &ParseError{Format: "dds", Line: lineNo, Text: "ARRAY:", Reason: "ARRAY: marker at end of input"}
	}
	return decls, nil
}

// parseDecl reads "Type name[dim = n][dim = n]...;".
func parseDecl(line string, lineNo int) (ArrayDecl, error) {
	p := &parser{lex: newLexer("dds", line, "[]=;")}
	fail := func(reason string) (ArrayDecl, error) {
		return ArrayDecl{}, &ParseError{Format: "dds", Line: lineNo, Text: line, Reason: reason}
	}

	typ, err := p.expectWord()
	if err != nil {
		return fail("missing array type")
	}
	name, err := p.expectWord()
	if err != nil {
		return fail("missing array name")
	}
	decl := ArrayDecl{Type: typ.text, Name: name.text, Line: lineNo}

	for {
		t, err := p.next()
		if err != nil {
			return fail(err.Error())
		}
		if t.kind == tokPunct && t.text == ";" {
			break
		}
		if t.kind != tokPunct || t.text != "[" {
			return fail("expected \"[\" or \";\", found " + t.String())
		}
		dimName, err := p.expectWord()
		if err != nil {
			return fail("missing dimension name")
		}
		if _, err := p.expectPunct("="); err != nil {
			return fail("missing \"=\" in dimension " + dimName.text)
		}
		sizeTok, err := p.expectWord()
		if err != nil {
			return fail("missing size of dimension " + dimName.text)
		}
		size, err := strconv.Atoi(sizeTok.text)
		if err != nil || size < 0 {
			return fail("bad size " + strconv.Quote(sizeTok.text) + " for dimension " + dimName.text)
		}
		if _, err := p.expectPunct("]"); err != nil {
			return fail("missing \"]\" after dimension " + dimName.text)
		}
		decl.Dims = append(decl.Dims, Dim{Name: dimName.text, Size: size})
	}

	if len(decl.Dims) == 0 {
		return fail("array declares no dimensions")
	}
	if t, err := p.next(); err != nil || t.kind != tokEOF {
		return fail("unexpected text after declaration")
	}
	return decl, nil
}
