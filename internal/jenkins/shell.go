package jenkins

import (
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Invocation is one simple command of a shell line: the program with any
// leading assignments, sudo and directory prefix removed.
type Invocation struct {
	Program string
	Args    []string
}

var envAssign = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)

// Invocations returns every simple command of cmd in source order, so
// `cd app && docker build .` yields cd and docker. Lines the shell parser
// rejects (Groovy interpolation such as ${env.X}) fall back to whitespace
// fields.
func Invocations(cmd string) []Invocation {
	var out []Invocation
	for _, words := range commandWords(cmd) {
		for len(words) > 0 && (envAssign.MatchString(words[0]) || words[0] == "sudo") {
			words = words[1:]
		}
		if len(words) == 0 {
			continue
		}
		prog := words[0]
		if i := strings.LastIndex(prog, "/"); i >= 0 {
			prog = prog[i+1:]
		}
		out = append(out, Invocation{Program: prog, Args: words[1:]})
	}
	return out
}

// InvokesAny reports whether any simple command of cmd runs one of progs.
func InvokesAny(cmd string, progs ...string) (string, bool) {
	for _, inv := range Invocations(cmd) {
		for _, p := range progs {
			if inv.Program == p {
				return p, true
			}
		}
	}
	return "", false
}

// commandWords parses cmd and returns the unquoted words of each simple
// command. Command substitutions inside arguments are not descended into.
func commandWords(cmd string) [][]string {
	f, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(cmd), "")
	if err != nil {
		var words []string
		for _, w := range strings.Fields(cmd) {
			words = append(words, strings.Trim(w, `'"`))
		}
		return [][]string{words}
	}
	var out [][]string
	syntax.Walk(f, func(n syntax.Node) bool {
		call, ok := n.(*syntax.CallExpr)
		if !ok {
			return true
		}
		words := make([]string, 0, len(call.Args))
		for _, w := range call.Args {
			words = append(words, wordText(w))
		}
		if len(words) > 0 {
			out = append(out, words)
		}
		return false
	})
	return out
}

// wordText renders a word with quoting removed and expansions left as
// written.
func wordText(w *syntax.Word) string {
	var sb strings.Builder
	for _, p := range w.Parts {
		writePart(&sb, p, false)
	}
	return sb.String()
}

func writePart(sb *strings.Builder, p syntax.WordPart, quoted bool) {
	switch p := p.(type) {
	case *syntax.Lit:
		sb.WriteString(unescapeLit(p.Value, quoted))
	case *syntax.SglQuoted:
		sb.WriteString(p.Value)
	case *syntax.DblQuoted:
		for _, q := range p.Parts {
			writePart(sb, q, true)
		}
	default:
		_ = syntax.NewPrinter().Print(sb, &syntax.Word{Parts: []syntax.WordPart{p}})
	}
}

// unescapeLit drops shell backslash escapes from a literal. Inside double
// quotes only \$ \` \" \\ and line continuations are escapes.
func unescapeLit(s string, quoted bool) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			sb.WriteByte(s[i])
			continue
		}
		next := s[i+1]
		switch {
		case next == '\n':
			i++
		case !quoted || strings.IndexByte("$`\"\\", next) >= 0:
			sb.WriteByte(next)
			i++
		default:
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

// shellWords returns the words of the first simple command in s.
func shellWords(s string) []string {
	words := commandWords(s)
	if len(words) == 0 {
		return nil
	}
	return words[0]
}
