package jenkins

import (
	"regexp"
	"strings"
)

// ValueKind classifies a call argument.
type ValueKind int

const (
	KindString ValueKind = iota
	KindBool
	KindNumber
	KindList
	KindExpr
)

// Value is one argument of a DSL call.
type Value struct {
	Kind  ValueKind
	Raw   string
	Str   string
	Items []Value
}

// Call is one invocation of a DSL step in either the named-argument shape
// `name(key: "v", ...)` or the bare shape `name "v"` / `name key: "v"`.
type Call struct {
	Name       string
	Start      int
	End        int
	Named      map[string]Value
	Positional []Value
	Body       *Span
}

// Outer covers the call including any trailing brace body.
func (c Call) Outer() Span {
	if c.Body != nil {
		return Span{Start: c.Start, End: c.Body.End + 1}
	}
	return Span{Start: c.Start, End: c.End}
}

// Arg returns a named argument.
func (c Call) Arg(name string) (Value, bool) {
	v, ok := c.Named[name]
	return v, ok
}

// Str returns the named argument as a string, or "".
func (c Call) Str(name string) string {
	if v, ok := c.Named[name]; ok {
		return v.Str
	}
	return ""
}

// StrOrFirst returns the named argument, falling back to the first
// positional argument. This covers constructs that accept both shapes.
func (c Call) StrOrFirst(name string) string {
	if s := c.Str(name); s != "" {
		return s
	}
	if len(c.Positional) > 0 {
		return c.Positional[0].Str
	}
	return ""
}

// Bool returns a named boolean argument.
func (c Call) Bool(name string) bool {
	v, ok := c.Named[name]
	return ok && v.Kind == KindBool && v.Str == "true"
}

// FindCalls returns every call to name outside string literals, in source
// order. Occurrences that cannot be parsed are skipped.
func FindCalls(text, name string) []Call {
	var out []Call
	from := 0
	for {
		c, ok := NextCall(text, name, from)
		if !ok {
			return out
		}
		out = append(out, c)
		from = c.End
	}
}

// NextCall returns the first call to name at or after from.
func NextCall(text, name string, from int) (Call, bool) {
	i := from
	for i < len(text) {
		ch := text[i]
		if ch == '\'' || ch == '"' {
			i = stringEnd(text, i)
			continue
		}
		if !isWordByte(ch) || ch == '.' {
			i++
			continue
		}
		start := i
		for i < len(text) && isWordByte(text[i]) {
			i++
		}
		if text[start:i] != name {
			continue
		}
		if c, ok := parseCall(text, name, start, i); ok {
			return c, true
		}
	}
	return Call{}, false
}

func parseCall(text, name string, start, i int) (Call, bool) {
	c := Call{Name: name, Start: start, Named: map[string]Value{}}
	j := skipInlineSpace(text, i)
	if j >= len(text) {
		c.End = j
		return c, true
	}
	switch ch := text[j]; {
	case ch == '(':
		close, ok := matchClose(text, j)
		if !ok {
			return Call{}, false
		}
		c.Named, c.Positional = parseArgs(text[j+1 : close])
		c.End = close + 1
		attachBody(text, &c, true)
	case ch == '{':
		c.End = j
		attachBody(text, &c, true)
	case ch == '\n' || ch == '\r' || ch == '}' || ch == ';':
		c.End = j
	case ch == ':' || ch == '=' || ch == ',' || ch == ')' || ch == ']':
		return Call{}, false
	default:
		end := bareArgsEnd(text, j)
		if end == j {
			return Call{}, false
		}
		c.Named, c.Positional = parseArgs(text[j:end])
		c.End = end
		attachBody(text, &c, false)
	}
	return c, true
}

func attachBody(text string, c *Call, crossLines bool) {
	k := skipInlineSpace(text, c.End)
	if crossLines {
		k = skipSpace(text, c.End)
	}
	if k >= len(text) || text[k] != '{' {
		return
	}
	close, ok := MatchBrace(text, k)
	if !ok {
		return
	}
	c.Body = &Span{Start: k + 1, End: close}
}

// bareArgsEnd finds the end of an unparenthesised argument list: the first
// newline at bracket depth zero that does not follow a trailing comma.
func bareArgsEnd(text string, i int) int {
	depth := 0
	lastNonSpace := byte(0)
	for i < len(text) {
		ch := text[i]
		switch {
		case ch == '\'' || ch == '"':
			i = stringEnd(text, i)
			lastNonSpace = '"'
			continue
		case ch == '(' || ch == '[':
			depth++
		case ch == ')' || ch == ']':
			if depth == 0 {
				return i
			}
			depth--
		case ch == '{' || ch == '}' || ch == ';':
			if depth == 0 {
				return trimRightSpace(text, i)
			}
		case ch == '\n':
			if depth == 0 && lastNonSpace != ',' {
				return trimRightSpace(text, i)
			}
		}
		if ch != ' ' && ch != '\t' && ch != '\r' && ch != '\n' {
			lastNonSpace = ch
		}
		i++
	}
	return trimRightSpace(text, i)
}

func trimRightSpace(text string, i int) int {
	for i > 0 && (text[i-1] == ' ' || text[i-1] == '\t' || text[i-1] == '\r') {
		i--
	}
	return i
}

// matchClose finds the bracket closing the '(' or '[' at open, skipping
// string literals.
func matchClose(text string, open int) (int, bool) {
	depth := 0
	for i := open; i < len(text); {
		switch text[i] {
		case '\'', '"':
			i = stringEnd(text, i)
			continue
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
		i++
	}
	return 0, false
}

var (
	namedArg  = regexp.MustCompile(`^(\$?[A-Za-z_][A-Za-z0-9_]*)\s*:\s*([\s\S]*)$`)
	numberArg = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
)

func parseArgs(s string) (map[string]Value, []Value) {
	named := map[string]Value{}
	var positional []Value
	for _, part := range splitTopLevel(s) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if m := namedArg.FindStringSubmatch(part); m != nil {
			named[m[1]] = parseValue(m[2])
			continue
		}
		positional = append(positional, parseValue(part))
	}
	return named, positional
}

func splitTopLevel(s string) []string {
	var parts []string
	depth, last := 0, 0
	for i := 0; i < len(s); {
		switch s[i] {
		case '\'', '"':
			i = stringEnd(s, i)
			continue
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
		i++
	}
	return append(parts, s[last:])
}

func parseValue(s string) Value {
	s = strings.TrimSpace(s)
	v := Value{Raw: s, Str: s, Kind: KindExpr}
	switch {
	case s == "":
	case (s[0] == '\'' || s[0] == '"') && stringEnd(s, 0) == len(s):
		v.Kind = KindString
		v.Str = unquote(s)
	case s == "true" || s == "false":
		v.Kind = KindBool
	case numberArg.MatchString(s):
		v.Kind = KindNumber
	case s[0] == '[' && s[len(s)-1] == ']':
		v.Kind = KindList
		_, v.Items = parseArgs(s[1 : len(s)-1])
	}
	return v
}

func unquote(s string) string {
	q := s[:1]
	if len(s) >= 6 && strings.HasPrefix(s, q+q+q) && strings.HasSuffix(s, q+q+q) {
		s = s[3 : len(s)-3]
	} else if len(s) >= 2 {
		s = s[1 : len(s)-1]
	}
	r := strings.NewReplacer(`\\`, `\`, `\'`, `'`, `\"`, `"`, `\$`, `$`)
	return r.Replace(s)
}
