package jenkins

import (
	"regexp"
	"strconv"
	"strings"
)

// ExtractAgent returns the first agent directive in text, or nil.
func ExtractAgent(text string) *Agent {
	calls := FindCalls(text, "agent")
	if len(calls) == 0 {
		return nil
	}
	c := calls[0]
	if c.Body == nil {
		switch strings.TrimSpace(c.StrOrFirst("")) {
		case "any":
			return &Agent{Kind: AgentAny}
		case "none":
			return &Agent{Kind: AgentNone}
		}
		if label := c.Str("label"); label != "" {
			return &Agent{Kind: AgentLabel, Label: label}
		}
		return nil
	}
	body := c.Body.Text(text)
	for _, d := range FindCalls(body, "docker") {
		if d.Body != nil {
			inner := d.Body.Text(body)
			a := &Agent{Kind: AgentDocker, Image: firstArg(inner, "image"), Args: firstArg(inner, "args")}
			for _, r := range FindCalls(inner, "reuseNode") {
				a.ReuseNode = len(r.Positional) == 0 || r.Positional[0].Str == "true"
			}
			if a.Image != "" {
				return a
			}
			continue
		}
		if img := d.StrOrFirst("image"); img != "" {
			return &Agent{Kind: AgentDocker, Image: img, Args: d.Str("args")}
		}
	}
	for _, n := range FindCalls(body, "node") {
		if n.Body != nil {
			if label := firstArg(n.Body.Text(body), "label"); label != "" {
				return &Agent{Kind: AgentLabel, Label: label}
			}
		}
	}
	if label := firstArg(body, "label"); label != "" {
		return &Agent{Kind: AgentLabel, Label: label}
	}
	return nil
}

// firstArg returns the string argument of the first bare call to name.
func firstArg(text, name string) string {
	for _, c := range FindCalls(text, name) {
		if s := c.StrOrFirst(name); s != "" {
			return s
		}
	}
	return ""
}

var toolLine = regexp.MustCompile(`(?:^|[;\n])\s*([A-Za-z_][A-Za-z0-9_]*)\s+['"]([^'"]+)['"]`)

// ExtractTools returns the entries of the first tools block in text.
func ExtractTools(text string) []Tool {
	body, ok := BlockBody(text, "tools")
	if !ok {
		return nil
	}
	var out []Tool
	for _, m := range toolLine.FindAllStringSubmatch(body, -1) {
		out = append(out, Tool{Kind: m[1], Name: m[2]})
	}
	return out
}

var (
	envLine        = regexp.MustCompile(`(?m)^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.+?)\s*$`)
	credentialsRef = regexp.MustCompile(`^credentials\s*\(\s*['"]([^'"]+)['"]\s*\)$`)
)

// ExtractEnv returns the assignments of the first environment block in
// text, in declaration order.
func ExtractEnv(text string) []EnvVar {
	body, ok := BlockBody(text, "environment")
	if !ok {
		return nil
	}
	var out []EnvVar
	for _, m := range envLine.FindAllStringSubmatch(body, -1) {
		raw := m[2]
		if cm := credentialsRef.FindStringSubmatch(raw); cm != nil {
			out = append(out, EnvVar{Key: m[1], Credential: cm[1]})
			continue
		}
		v := parseValue(raw)
		out = append(out, EnvVar{Key: m[1], Value: v.Str})
	}
	return out
}

// ExtractParameters returns the declarations of the parameters block.
func ExtractParameters(text string) []Parameter {
	body, ok := BlockBody(text, "parameters")
	if !ok {
		return nil
	}
	kinds := map[string]ParamKind{
		"string":       ParamString,
		"booleanParam": ParamBoolean,
		"choice":       ParamChoice,
		"text":         ParamText,
		"password":     ParamPassword,
	}
	var calls []Call
	for name := range kinds {
		calls = append(calls, FindCalls(body, name)...)
	}
	sortCalls(calls)
	var out []Parameter
	for _, c := range calls {
		p := Parameter{
			Kind:        kinds[c.Name],
			Name:        c.Str("name"),
			Default:     c.Str("defaultValue"),
			Description: c.Str("description"),
		}
		if p.Name == "" {
			continue
		}
		if v, ok := c.Arg("defaultValue"); ok && v.Kind == KindBool {
			p.Default = v.Raw
		}
		if v, ok := c.Arg("choices"); ok {
			p.Choices = splitChoices(v)
			if len(p.Choices) > 0 {
				p.Default = p.Choices[0]
			}
		}
		out = append(out, p)
	}
	return out
}

func splitChoices(v Value) []string {
	var out []string
	if v.Kind == KindList {
		for _, it := range v.Items {
			out = append(out, it.Str)
		}
		return out
	}
	for _, s := range strings.Split(v.Str, "\n") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ExtractTimeout returns the minutes of an options { timeout(...) }
// directive, or 0.
func ExtractTimeout(text string) int {
	body, ok := BlockBody(text, "options")
	if !ok {
		return 0
	}
	for _, c := range FindCalls(body, "timeout") {
		raw := c.Str("time")
		if raw == "" {
			if v, ok := c.Arg("time"); ok {
				raw = v.Raw
			} else if len(c.Positional) > 0 {
				raw = c.Positional[0].Raw
			}
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n <= 0 {
			continue
		}
		switch strings.ToUpper(c.Str("unit")) {
		case "HOURS":
			return n * 60
		case "SECONDS":
			return (n + 59) / 60
		case "DAYS":
			return n * 60 * 24
		default:
			return n
		}
	}
	return 0
}

var returnPrefix = regexp.MustCompile(`^return\s+`)

// ExtractWhen returns the stage's when condition, or nil.
func ExtractWhen(text string) *WhenCondition {
	body, ok := BlockBody(text, "when")
	if !ok {
		return nil
	}
	w := &WhenCondition{}
	for _, kw := range []string{"anyOf", "allOf", "not"} {
		for _, c := range FindCalls(body, kw) {
			if c.Body != nil {
				w.Combinators = append(w.Combinators, kw)
			}
		}
	}
	type found struct {
		at int
		p  Predicate
	}
	var preds []found
	for _, c := range FindCalls(body, "branch") {
		if pat := c.StrOrFirst("pattern"); pat != "" {
			preds = append(preds, found{c.Start, Predicate{Kind: PredBranch, Value: pat, HasValue: true}})
		}
	}
	for _, c := range FindCalls(body, "environment") {
		if name := c.Str("name"); name != "" {
			v, has := c.Arg("value")
			preds = append(preds, found{c.Start, Predicate{Kind: PredEnvironment, Name: name, Value: v.Str, HasValue: has}})
		}
	}
	for _, c := range FindCalls(body, "expression") {
		if c.Body == nil {
			continue
		}
		expr := strings.TrimSpace(c.Body.Text(body))
		expr = strings.TrimSpace(returnPrefix.ReplaceAllString(expr, ""))
		if expr != "" {
			preds = append(preds, found{c.Start, Predicate{Kind: PredExpression, Value: expr, HasValue: true}})
		}
	}
	for _, c := range FindCalls(body, "changeRequest") {
		preds = append(preds, found{c.Start, Predicate{Kind: PredChangeRequest}})
	}
	for _, c := range FindCalls(body, "buildingTag") {
		preds = append(preds, found{c.Start, Predicate{Kind: PredBuildingTag}})
	}
	for _, c := range FindCalls(body, "tag") {
		if pat := c.StrOrFirst("pattern"); pat != "" {
			preds = append(preds, found{c.Start, Predicate{Kind: PredTag, Value: pat, HasValue: true}})
		}
	}
	for i := 1; i < len(preds); i++ {
		for j := i; j > 0 && preds[j].at < preds[j-1].at; j-- {
			preds[j], preds[j-1] = preds[j-1], preds[j]
		}
	}
	for _, f := range preds {
		w.Predicates = append(w.Predicates, f.p)
	}
	if len(w.Predicates) == 0 && len(w.Combinators) == 0 {
		return nil
	}
	return w
}

// ExtractInputs returns approval gates: input steps in either call shape
// and the stage-level input { ... } directive.
func ExtractInputs(text string) []InputStep {
	var out []InputStep
	for _, c := range FindCalls(text, "input") {
		if c.Body != nil && len(c.Named) == 0 && len(c.Positional) == 0 {
			inner := c.Body.Text(text)
			step := InputStep{
				Message:   firstArg(inner, "message"),
				OK:        firstArg(inner, "ok"),
				Submitter: firstArg(inner, "submitter"),
			}
			_, step.HasParameters = BlockBody(inner, "parameters")
			if step.Message != "" {
				out = append(out, step)
			}
			continue
		}
		msg := c.StrOrFirst("message")
		if msg == "" {
			continue
		}
		_, hasParams := c.Arg("parameters")
		out = append(out, InputStep{Message: msg, OK: c.Str("ok"), Submitter: c.Str("submitter"), HasParameters: hasParams})
	}
	return out
}

func sortCalls(calls []Call) {
	for i := 1; i < len(calls); i++ {
		for j := i; j > 0 && calls[j].Start < calls[j-1].Start; j-- {
			calls[j], calls[j-1] = calls[j-1], calls[j]
		}
	}
}
