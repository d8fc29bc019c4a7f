package convert

import (
	"fmt"
	"strings"

	"github.com/mattjoyce/jenkins2gha/internal/jenkins"
)

const manualNote = "MANUAL CONVERSION REQUIRED: "

// RenderWhen renders a when condition as an if: expression. note is set
// when part of the condition could not be translated; the untranslated
// part is replaced by "true" so the job is never silently blocked.
func RenderWhen(w *jenkins.WhenCondition) (expr string, note string) {
	if w == nil {
		return "", ""
	}
	if w.Complex() {
		return "true", manualNote + strings.Join(uniq(w.Combinators), "/") + " conditions"
	}
	var (
		parts   []string
		skipped []string
	)
	for _, p := range w.Predicates {
		s, ok := renderPredicate(p)
		if !ok {
			skipped = append(skipped, p.Value)
			continue
		}
		parts = append(parts, s)
	}
	if len(skipped) > 0 {
		note = manualNote + "expression " + strings.Join(skipped, "; ")
	}
	if len(parts) == 0 {
		return "true", note
	}
	if len(parts) == 1 {
		return parts[0], note
	}
	for i, s := range parts {
		if strings.Contains(s, "||") {
			parts[i] = "(" + s + ")"
		}
	}
	return strings.Join(parts, " && "), note
}

func renderPredicate(p jenkins.Predicate) (string, bool) {
	switch p.Kind {
	case jenkins.PredBranch:
		return refMatch("refs/heads/", p.Value), true
	case jenkins.PredTag:
		return refMatch("refs/tags/", p.Value), true
	case jenkins.PredEnvironment:
		left := "env." + p.Name
		if p.Name == "BRANCH_NAME" || p.Name == "GIT_BRANCH" {
			left = "github.ref_name"
		}
		if !p.HasValue {
			return left + " != ''", true
		}
		return fmt.Sprintf("%s == %s", left, quote(p.Value)), true
	case jenkins.PredExpression:
		return TranslateExpression(p.Value)
	case jenkins.PredChangeRequest:
		return "github.event_name == 'pull_request'", true
	case jenkins.PredBuildingTag:
		return "startsWith(github.ref, 'refs/tags/')", true
	}
	return "", false
}

func refMatch(prefix, pattern string) string {
	if prefix == "refs/heads/" && (pattern == "main" || pattern == "master") {
		return "github.ref == 'refs/heads/main' || github.ref == 'refs/heads/master'"
	}
	if i := strings.IndexAny(pattern, "*?"); i >= 0 {
		return fmt.Sprintf("startsWith(github.ref, %s)", quote(prefix+pattern[:i]))
	}
	return fmt.Sprintf("github.ref == %s", quote(prefix+pattern))
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// TranslateExpression rewrites a Groovy boolean expression built from
// params/env references, string literals, comparisons and logical
// operators. Anything else is rejected.
func TranslateExpression(src string) (string, bool) {
	src = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(src), ";"))
	var (
		out        []string
		usesParams bool
	)
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(' || c == ')':
			out = append(out, string(c))
			i++
		case strings.HasPrefix(src[i:], "==") || strings.HasPrefix(src[i:], "!=") ||
			strings.HasPrefix(src[i:], "&&") || strings.HasPrefix(src[i:], "||"):
			out = append(out, src[i:i+2])
			i += 2
		case c == '!':
			out = append(out, "!")
			i++
		case c == '\'' || c == '"':
			end := strings.IndexByte(src[i+1:], c)
			if end < 0 {
				return "", false
			}
			lit := src[i+1 : i+1+end]
			if strings.Contains(lit, "${") {
				return "", false
			}
			out = append(out, quote(lit))
			i += end + 2
		case isIdentStart(c):
			j := i
			for j < len(src) && (isIdentStart(src[j]) || src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				j++
			}
			word := src[i:j]
			tok, isParam, ok := translateWord(word)
			if !ok {
				return "", false
			}
			usesParams = usesParams || isParam
			out = append(out, tok)
			i = j
		case c >= '0' && c <= '9':
			j := i
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				j++
			}
			out = append(out, src[i:j])
			i = j
		default:
			return "", false
		}
	}
	if len(out) == 0 {
		return "", false
	}
	expr := joinTokens(out)
	if usesParams {
		if strings.Contains(expr, "||") {
			expr = "(" + expr + ")"
		}
		expr = "github.event_name == 'workflow_dispatch' && " + expr
	}
	return expr, true
}

func translateWord(word string) (string, bool, bool) {
	switch {
	case word == "true" || word == "false":
		return word, false, true
	case strings.HasPrefix(word, "params.") && isIdent(word[len("params."):]):
		return "inputs." + word[len("params."):], true, true
	case strings.HasPrefix(word, "env.") && isIdent(word[len("env."):]):
		name := word[len("env."):]
		if name == "BRANCH_NAME" || name == "GIT_BRANCH" {
			return "github.ref_name", false, true
		}
		return "env." + name, false, true
	case word == "BRANCH_NAME":
		return "github.ref_name", false, true
	}
	return "", false, false
}

func joinTokens(toks []string) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 && t != ")" && toks[i-1] != "(" && toks[i-1] != "!" {
			b.WriteByte(' ')
		}
		b.WriteString(t)
	}
	return b.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdent(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !isIdentStart(c) && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func uniq(in []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
