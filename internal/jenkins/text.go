package jenkins

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNotFound is returned by the block locator when a keyword has no
// balanced body. Callers treat it as "feature absent".
var ErrNotFound = errors.New("block not found")

// Span is a half-open [Start, End) range of byte offsets into source text.
type Span struct {
	Start int
	End   int
}

// Text returns the slice of src covered by the span.
func (s Span) Text(src string) string {
	if s.Start < 0 || s.End > len(src) || s.Start > s.End {
		return ""
	}
	return src[s.Start:s.End]
}

// Contains reports whether off falls inside the span.
func (s Span) Contains(off int) bool {
	return off >= s.Start && off < s.End
}

// Block is a keyword followed by a balanced brace body.
type Block struct {
	Start int // offset of the keyword
	Open  int // offset of '{'
	Close int // offset of the matching '}'
}

// Body is the span strictly between the braces.
func (b Block) Body() Span { return Span{Start: b.Open + 1, End: b.Close} }

// Outer covers the keyword through the closing brace.
func (b Block) Outer() Span { return Span{Start: b.Start, End: b.Close + 1} }

// Locate finds the first occurrence of keyword followed (modulo whitespace)
// by '{' and returns the balanced block.
func Locate(text, keyword string) (Block, error) {
	return LocateFrom(text, keyword, 0)
}

// LocateFrom is Locate starting the search at offset from.
func LocateFrom(text, keyword string, from int) (Block, error) {
	start, open, ok := findOpen(text, keyword, from)
	if !ok {
		return Block{}, ErrNotFound
	}
	end, ok := MatchBrace(text, open)
	if !ok {
		return Block{}, ErrNotFound
	}
	return Block{Start: start, Open: open, Close: end}, nil
}

// findOpen returns the keyword offset and the offset of the '{' that
// follows it for the first qualifying occurrence at or after from.
func findOpen(text, keyword string, from int) (int, int, bool) {
	if keyword == "" {
		return 0, 0, false
	}
	i := from
	for i < len(text) {
		idx := strings.Index(text[i:], keyword)
		if idx < 0 {
			break
		}
		start := i + idx
		i = start + len(keyword)
		if start > 0 && isWordByte(text[start-1]) {
			continue
		}
		open := skipSpace(text, i)
		if open >= len(text) || text[open] != '{' {
			continue
		}
		return start, open, true
	}
	return 0, 0, false
}

// locateLenient behaves like Locate but accepts an unterminated block,
// returning a body that runs to the end of text and truncated=true.
func locateLenient(text, keyword string) (Span, Span, bool, error) {
	if b, err := Locate(text, keyword); err == nil {
		return b.Body(), b.Outer(), false, nil
	}
	start, open, ok := findOpen(text, keyword, 0)
	if !ok {
		return Span{}, Span{}, false, ErrNotFound
	}
	return Span{Start: open + 1, End: len(text)}, Span{Start: start, End: len(text)}, true, nil
}

// mask blanks the given spans of text, keeping newlines so offsets and
// line structure survive.
func mask(text string, spans ...Span) string {
	if len(spans) == 0 {
		return text
	}
	b := []byte(text)
	for _, s := range spans {
		for i := max(s.Start, 0); i < s.End && i < len(b); i++ {
			if b[i] != '\n' {
				b[i] = ' '
			}
		}
	}
	return string(b)
}

// keepOnly blanks everything outside span.
func keepOnly(text string, span Span) string {
	return mask(text, Span{Start: 0, End: span.Start}, Span{Start: span.End, End: len(text)})
}

// LocateAll returns every non-overlapping block introduced by keyword.
func LocateAll(text, keyword string) []Block {
	var out []Block
	from := 0
	for {
		b, err := LocateFrom(text, keyword, from)
		if err != nil {
			return out
		}
		out = append(out, b)
		from = b.Close + 1
	}
}

// BlockBody is a convenience returning the body text of keyword's block.
func BlockBody(text, keyword string) (string, bool) {
	b, err := Locate(text, keyword)
	if err != nil {
		return "", false
	}
	return b.Body().Text(text), true
}

// MatchBrace scans forward from the '{' at open and returns the offset of
// the brace that returns the depth to zero.
func MatchBrace(text string, open int) (int, bool) {
	if open < 0 || open >= len(text) || text[open] != '{' {
		return 0, false
	}
	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// StripComments removes /* */ and // comments that appear outside string
// literals. Newlines inside block comments are kept so line structure is
// preserved.
func StripComments(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '\'' || c == '"':
			end := stringEnd(text, i)
			b.WriteString(text[i:end])
			i = end
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			for i < len(text) && text[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			stop := len(text)
			if end >= 0 {
				stop = i + 2 + end + 2
			}
			b.WriteString(strings.Repeat("\n", strings.Count(text[i:stop], "\n")))
			i = stop
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// stringEnd returns the offset just past the string literal starting at i.
// Single-line literals end at a newline if unterminated.
func stringEnd(text string, i int) int {
	q := text[i]
	if strings.HasPrefix(text[i:], strings.Repeat(string(q), 3)) {
		delim := strings.Repeat(string(q), 3)
		for j := i + 3; j < len(text); j++ {
			if text[j] == '\\' {
				j++
				continue
			}
			if strings.HasPrefix(text[j:], delim) {
				return j + 3
			}
		}
		return len(text)
	}
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case q:
			return j + 1
		case '\n':
			return j
		}
	}
	return len(text)
}

var (
	nonIDChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)
	dashRuns   = regexp.MustCompile(`-+`)
)

// SanitizeName converts a stage name into a job identifier.
func SanitizeName(name string) string {
	s := nonIDChars.ReplaceAllString(name, "-")
	s = dashRuns.ReplaceAllString(s, "-")
	s = strings.ToLower(strings.Trim(s, "-"))
	if s == "" {
		return "stage"
	}
	if c := s[0]; !(c >= 'a' && c <= 'z') && c != '_' {
		s = "job-" + s
	}
	return s
}

// MultilineToCommands splits a shell script into commands, dropping blank
// lines and comments and joining backslash continuations.
func MultilineToCommands(script string) []string {
	var (
		out     []string
		current strings.Builder
	)
	for _, line := range strings.Split(strings.TrimSpace(script), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasSuffix(line, "\\") {
			current.WriteString(strings.TrimSuffix(line, "\\"))
			current.WriteByte(' ')
			continue
		}
		current.WriteString(line)
		if cmd := strings.TrimSpace(current.String()); cmd != "" {
			out = append(out, cmd)
		}
		current.Reset()
	}
	if cmd := strings.TrimSpace(current.String()); cmd != "" {
		out = append(out, cmd)
	}
	return out
}

func skipSpace(text string, i int) int {
	for i < len(text) {
		switch text[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

func skipInlineSpace(text string, i int) int {
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	return i
}

func isWordByte(c byte) bool {
	return c == '_' || c == '.' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
