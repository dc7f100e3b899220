// Package matcher provides the content predicates applied to
// generated artifacts. Matchers are stateless and may be shared
// between artifacts and passes.
package matcher

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"github.com/unbound-force/gencheck/internal/artifact"
)

// Matcher checks artifact content. Match returns nil on a match, a
// *MismatchError when the content differs, and any other error for
// I/O faults.
type Matcher interface {
	Match(a artifact.Artifact) error
	String() string

	// Equal reports configuration equality, used to deduplicate
	// matchers.
	Equal(other Matcher) bool
}

// MismatchError reports that an artifact's content does not satisfy
// a matcher.
type MismatchError struct {
	Method   string
	Artifact artifact.ID
	Detail   string
}

func (e *MismatchError) Error() string {
	msg := fmt.Sprintf("artifacts are not equal by %s: %s", e.Method, e.Artifact)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// IsMismatch reports whether err is a content mismatch rather than a
// fault reading the content.
func IsMismatch(err error) bool {
	var me *MismatchError
	return errors.As(err, &me)
}

// Dedupe drops matchers equal to an earlier one, keeping order.
func Dedupe(ms []Matcher) []Matcher {
	out := make([]Matcher, 0, len(ms))
	for _, m := range ms {
		if slices.ContainsFunc(out, m.Equal) {
			continue
		}
		out = append(out, m)
	}
	return out
}

type binary struct {
	expected []byte
}

// Binary compares content byte for byte.
func Binary(expected []byte) Matcher {
	return binary{expected: expected}
}

// BinaryString is Binary for string content.
func BinaryString(expected string) Matcher {
	return binary{expected: []byte(expected)}
}

func (m binary) String() string { return "binary" }

func (m binary) Equal(other Matcher) bool {
	o, ok := other.(binary)
	return ok && bytes.Equal(m.expected, o.expected)
}

func (m binary) Match(a artifact.Artifact) error {
	rc, err := a.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", a.ID(), err)
	}
	defer rc.Close()

	actual := bufio.NewReader(rc)
	expected := bufio.NewReader(bytes.NewReader(m.expected))
	for offset := 0; ; offset++ {
		eb, eerr := expected.ReadByte()
		ab, aerr := actual.ReadByte()
		if aerr != nil && aerr != io.EOF {
			return fmt.Errorf("reading %s: %w", a.ID(), aerr)
		}
		switch {
		case eerr == io.EOF && aerr == io.EOF:
			return nil
		case eerr == io.EOF:
			return &MismatchError{Method: m.String(), Artifact: a.ID(),
				Detail: fmt.Sprintf("content is longer than expected (%d bytes expected)", len(m.expected))}
		case aerr == io.EOF:
			return &MismatchError{Method: m.String(), Artifact: a.ID(),
				Detail: fmt.Sprintf("content ends at byte %d, %d bytes expected", offset, len(m.expected))}
		case eb != ab:
			return &MismatchError{Method: m.String(), Artifact: a.ID(),
				Detail: fmt.Sprintf("first difference at byte %d", offset)}
		}
	}
}

type text struct {
	expected string
}

// Text compares content line by line, treating "\n" and "\r\n" line
// endings as equal.
func Text(expected string) Matcher {
	return text{expected: expected}
}

func (m text) String() string { return "text ignoring line endings" }

func (m text) Equal(other Matcher) bool {
	o, ok := other.(text)
	return ok && m.expected == o.expected
}

func (m text) Match(a artifact.Artifact) error {
	rc, err := a.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", a.ID(), err)
	}
	defer rc.Close()

	actual := bufio.NewReader(rc)
	expected := bufio.NewReader(strings.NewReader(m.expected))
	for line := 1; ; line++ {
		want, eok, err := nextLine(expected)
		if err != nil {
			return fmt.Errorf("reading expected content: %w", err)
		}
		got, aok, err := nextLine(actual)
		if err != nil {
			return fmt.Errorf("reading %s: %w", a.ID(), err)
		}
		switch {
		case !eok && !aok:
			return nil
		case eok != aok:
			return &MismatchError{Method: m.String(), Artifact: a.ID(),
				Detail: fmt.Sprintf("line counts differ at line %d", line)}
		case want != got:
			return &MismatchError{Method: m.String(), Artifact: a.ID(),
				Detail: fmt.Sprintf("line %d: expected %q, got %q", line, want, got)}
		}
	}
}

// nextLine returns the next line of r without its "\n" or "\r\n"
// terminator. Lines have no length limit. ok is false at the end of
// input; a final empty line is not reported.
func nextLine(r *bufio.Reader) (line string, ok bool, err error) {
	line, err = r.ReadString('\n')
	if err == io.EOF {
		if line == "" {
			return "", false, nil
		}
		err = nil
	}
	if err != nil {
		return "", false, err
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), true, nil
}

type regex struct {
	pattern string
	re      *regexp.Regexp
}

// Regex requires the entire content to match pattern. The pattern is
// compiled multi-line, with "." matching newlines.
func Regex(pattern string) (Matcher, error) {
	re, err := regexp.Compile(`(?ms)\A(?:` + pattern + `)\z`)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q: %w", pattern, err)
	}
	return regex{pattern: pattern, re: re}, nil
}

// MustRegex is Regex that panics on an invalid pattern.
func MustRegex(pattern string) Matcher {
	m, err := Regex(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

func (m regex) String() string { return fmt.Sprintf("regex %q", m.pattern) }

func (m regex) Equal(other Matcher) bool {
	o, ok := other.(regex)
	return ok && m.pattern == o.pattern
}

func (m regex) Match(a artifact.Artifact) error {
	data, err := artifact.Bytes(a)
	if err != nil {
		return err
	}
	if !m.re.Match(data) {
		return &MismatchError{Method: m.String(), Artifact: a.ID(),
			Detail: "content does not match the pattern"}
	}
	return nil
}

type substrings struct {
	subs []string
}

// ContainsSubstrings requires the content to contain every one of
// subs.
func ContainsSubstrings(subs ...string) Matcher {
	return substrings{subs: subs}
}

func (m substrings) String() string { return "contained substrings" }

func (m substrings) Equal(other Matcher) bool {
	o, ok := other.(substrings)
	return ok && slices.Equal(m.subs, o.subs)
}

func (m substrings) Match(a artifact.Artifact) error {
	data, err := artifact.Bytes(a)
	if err != nil {
		return err
	}
	content := string(data)
	for _, s := range m.subs {
		if !strings.Contains(content, s) {
			return &MismatchError{Method: m.String(), Artifact: a.ID(),
				Detail: fmt.Sprintf("substring %q not found", s)}
		}
	}
	return nil
}

type wellFormedXML struct{}

// WellFormedXML requires the content to parse as XML with exactly
// one root element and nothing but whitespace, comments and
// processing instructions around it. General entities declared in an
// internal DTD subset are honored; external entities and DTDs are
// never fetched, so references to them fail the match.
func WellFormedXML() Matcher {
	return wellFormedXML{}
}

func (wellFormedXML) String() string { return "well-formed xml" }

func (wellFormedXML) Equal(other Matcher) bool {
	_, ok := other.(wellFormedXML)
	return ok
}

func (m wellFormedXML) Match(a artifact.Artifact) error {
	rc, err := a.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", a.ID(), err)
	}
	defer rc.Close()

	src := &trackingReader{r: rc}
	dec := xml.NewDecoder(src)
	dec.Strict = true
	roots := 0
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			if src.err != nil {
				return fmt.Errorf("reading %s: %w", a.ID(), src.err)
			}
			return &MismatchError{Method: m.String(), Artifact: a.ID(),
				Detail: "not well-formed: " + err.Error()}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return &MismatchError{Method: m.String(), Artifact: a.ID(),
					Detail: "not well-formed: character data outside the root element"}
			}
		case xml.Directive:
			if depth == 0 && roots == 0 {
				declareEntities(dec, t)
			}
		}
	}
	if roots != 1 {
		return &MismatchError{Method: m.String(), Artifact: a.ID(),
			Detail: fmt.Sprintf("not well-formed: %d root elements", roots)}
	}
	return nil
}

// entityDecl matches internal general entity declarations with a
// literal value. Parameter entities and external (SYSTEM or PUBLIC)
// entities do not match.
var entityDecl = regexp.MustCompile(`<!ENTITY\s+([^\s%"'<>]+)\s+(?:"([^"<&]*)"|'([^'<&]*)')\s*>`)

// declareEntities registers the entities declared in the internal
// subset of a DOCTYPE directive with dec.
func declareEntities(dec *xml.Decoder, d xml.Directive) {
	if !bytes.HasPrefix(d, []byte("DOCTYPE")) {
		return
	}
	for _, m := range entityDecl.FindAllSubmatch(d, -1) {
		if dec.Entity == nil {
			dec.Entity = make(map[string]string)
		}
		value := m[2]
		if value == nil {
			value = m[3]
		}
		dec.Entity[string(m[1])] = string(value)
	}
}

// trackingReader remembers the first read fault so that syntax
// errors can be told apart from I/O errors.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}
