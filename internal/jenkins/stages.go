package jenkins

// SplitStages splits a stages-like body into its top-level stages in
// source order. Text between stages is ignored. An unterminated stage
// stops decomposition and the stages collected so far are returned.
func SplitStages(body string) []Stage {
	stages, _ := splitStages(body)
	return stages
}

func splitStages(body string) ([]Stage, bool) {
	var out []Stage
	from := 0
	for {
		c, ok := NextCall(body, "stage", from)
		if !ok {
			return out, false
		}
		name := c.StrOrFirst("name")
		if c.Body == nil || name == "" {
			// Header without a balanced body: no backtracking.
			return out, true
		}
		out = append(out, Stage{Name: name, Body: c.Body.Text(body)})
		from = c.Body.End + 1
	}
}

// ExtractParallel returns the member stages of the parallel block inside
// a stage body, or nil when the stage has none.
func ExtractParallel(stageBody string) []Stage {
	b, err := Locate(stageDirectives(stageBody), "parallel")
	if err != nil {
		return nil
	}
	return SplitStages(b.Body().Text(stageBody))
}

// Decompose builds the stage forest for a stages body.
func Decompose(stagesBody string) ([]StageNode, bool) {
	stages, truncated := splitStages(stagesBody)
	nodes := make([]StageNode, 0, len(stages))
	for _, st := range stages {
		nodes = append(nodes, StageNode{Stage: st, Parallel: ExtractParallel(st.Body)})
	}
	return nodes, truncated
}

// stageDirectives blanks nested stage containers so that a stage's own
// directives are not confused with those of its children.
func stageDirectives(body string) string {
	var spans []Span
	for _, kw := range []string{"stages", "matrix"} {
		for _, b := range LocateAll(body, kw) {
			spans = append(spans, b.Outer())
		}
	}
	masked := mask(body, spans...)
	if b, err := Locate(masked, "parallel"); err == nil {
		// Keep the parallel keyword and braces, blank the members.
		masked = mask(masked, b.Body())
	}
	return masked
}

// stageSteps returns the stage body with everything outside the steps
// block blanked. A stage without a steps block keeps its body minus the
// directive blocks.
func stageSteps(body string) string {
	directives := stageDirectives(body)
	if b, err := Locate(directives, "steps"); err == nil {
		return keepOnly(body, b.Body())
	}
	var spans []Span
	for _, kw := range []string{"post", "when", "environment", "agent", "tools", "options", "input", "parallel", "stages", "matrix"} {
		if b, err := Locate(directives, kw); err == nil {
			spans = append(spans, b.Outer())
		}
	}
	for _, c := range FindCalls(directives, "agent") {
		spans = append(spans, c.Outer())
	}
	return mask(body, spans...)
}
