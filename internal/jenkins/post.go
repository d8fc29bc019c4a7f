package jenkins

import (
	"regexp"
	"sort"
)

// ExtractPost returns the post block of text as an ordered action set.
// Conditions with no recognised effects are kept so that their presence
// still counts.
func ExtractPost(text string) PostActionSet {
	body, ok := BlockBody(text, "post")
	if !ok {
		return nil
	}
	var set PostActionSet
	for _, cond := range PostConditions {
		inner, ok := BlockBody(body, string(cond))
		if !ok {
			continue
		}
		set = append(set, PostClause{Condition: cond, Effects: extractEffects(inner)})
	}
	return set
}

var (
	htmlDir   = regexp.MustCompile(`reportDir\s*:\s*['"]([^'"]*)['"]`)
	htmlFiles = regexp.MustCompile(`reportFiles\s*:\s*['"]([^'"]*)['"]`)
	htmlName  = regexp.MustCompile(`reportName\s*:\s*['"]([^'"]*)['"]`)
	coverPath = regexp.MustCompile(`(?:pattern|execPattern|path)\s*:\s*['"]([^'"]*)['"]`)
)

type placedEffect struct {
	at     int
	effect PostEffect
}

func extractEffects(body string) []PostEffect {
	var placed []placedEffect
	add := func(at int, e PostEffect) { placed = append(placed, placedEffect{at, e}) }

	var scriptSpans []Span
	for _, c := range FindCalls(body, "script") {
		if c.Body != nil {
			scriptSpans = append(scriptSpans, c.Outer())
			add(c.Start, ScriptEffect{Body: dedent(c.Body.Text(body))})
		}
	}
	plain := mask(body, scriptSpans...)

	for _, c := range FindCalls(plain, "archiveArtifacts") {
		add(c.Start, ArchiveEffect{
			Artifacts:        c.StrOrFirst("artifacts"),
			AllowEmpty:       c.Bool("allowEmptyArchive"),
			OnlyIfSuccessful: c.Bool("onlyIfSuccessful"),
		})
	}
	for _, c := range FindCalls(plain, "junit") {
		add(c.Start, JUnitEffect{Results: c.StrOrFirst("testResults"), AllowEmpty: c.Bool("allowEmptyResults")})
	}
	for _, name := range []string{"jacoco", "recordCoverage", "publishCoverage"} {
		for _, c := range FindCalls(plain, name) {
			path := "**/jacoco.xml"
			if m := coverPath.FindStringSubmatch(plain[c.Start:c.End]); m != nil {
				path = m[1]
			}
			add(c.Start, CoverageEffect{Path: path})
		}
	}
	for _, c := range FindCalls(plain, "publishHTML") {
		raw := plain[c.Start:c.End]
		e := HTMLReportEffect{}
		if m := htmlDir.FindStringSubmatch(raw); m != nil {
			e.Dir = m[1]
		}
		if m := htmlFiles.FindStringSubmatch(raw); m != nil {
			e.Files = m[1]
		}
		if m := htmlName.FindStringSubmatch(raw); m != nil {
			e.Name = m[1]
		}
		add(c.Start, e)
	}
	for _, c := range FindCalls(plain, "mail") {
		add(c.Start, MailEffect{To: c.Str("to"), Subject: c.Str("subject"), Body: c.Str("body")})
	}
	for _, c := range FindCalls(plain, "emailext") {
		add(c.Start, EmailExtEffect{To: c.Str("to"), Subject: c.Str("subject")})
	}
	for _, c := range FindCalls(plain, "slackSend") {
		add(c.Start, SlackEffect{Channel: c.Str("channel"), Message: c.StrOrFirst("message"), Color: c.Str("color")})
	}
	for _, name := range []string{"deleteDir", "cleanWs"} {
		for _, c := range FindCalls(plain, name) {
			add(c.Start, CleanupEffect{})
		}
	}
	for _, cmd := range ExtractCommands(plain) {
		add(cmd.Offset, CommandEffect{Command: cmd.Text})
	}
	for _, u := range ExtractUnresolved(plain) {
		add(u.Offset, ScriptEffect{Body: u.Source})
	}

	sort.SliceStable(placed, func(i, j int) bool { return placed[i].at < placed[j].at })
	out := make([]PostEffect, 0, len(placed))
	for _, p := range placed {
		out = append(out, p.effect)
	}
	return out
}
