package actions

import (
	"regexp"
	"strings"

	"github.com/mattjoyce/jenkins2gha/internal/gha"
	"github.com/mattjoyce/jenkins2gha/internal/jenkins"
)

var (
	javaVersion = regexp.MustCompile(`(?:^|[^0-9])(8|11|17|21)(?:[^0-9]|$)`)
	nodeVersion = regexp.MustCompile(`(?:^|[^0-9])(16|18|20|22)(?:[^0-9]|$)`)
	goVersion   = regexp.MustCompile(`[0-9]+\.[0-9]+(\.[0-9]+)?`)
)

// ToolSteps returns setup steps for a tools block. When a kind appears
// more than once the later entry wins, so stage tools listed after the
// pipeline's override them. Unknown tools are skipped; git is
// preinstalled on hosted runners.
func ToolSteps(tools []jenkins.Tool) []gha.Step {
	var (
		steps    []gha.Step
		kinds    []string
		last     = map[string]jenkins.Tool{}
		hasJDK   bool
		hasMaven bool
	)
	for _, t := range tools {
		if _, ok := last[t.Kind]; !ok {
			kinds = append(kinds, t.Kind)
		}
		last[t.Kind] = t
		switch t.Kind {
		case "jdk":
			hasJDK = true
		case "maven":
			hasMaven = true
		}
	}
	for _, kind := range kinds {
		t := last[kind]
		switch t.Kind {
		case "jdk":
			steps = append(steps, setupJava(javaFrom(t.Name)))
		case "maven":
			if !hasJDK {
				steps = append(steps, setupJava("17"))
			}
			steps = append(steps, gha.Step{
				Name: "Cache Maven packages",
				Uses: "actions/cache@v4",
				With: map[string]string{
					"path":         "~/.m2/repository",
					"key":          "${{ runner.os }}-maven-${{ hashFiles('**/pom.xml') }}",
					"restore-keys": "${{ runner.os }}-maven-",
				},
			})
		case "gradle":
			if !hasJDK && !hasMaven {
				steps = append(steps, setupJava("17"))
			}
			steps = append(steps, gha.Step{Name: "Set up Gradle", Uses: "gradle/actions/setup-gradle@v3"})
		case "nodejs":
			version := "18"
			if m := nodeVersion.FindStringSubmatch(t.Name); m != nil {
				version = m[1]
			}
			steps = append(steps, gha.Step{
				Name: "Set up Node.js " + version,
				Uses: "actions/setup-node@v4",
				With: map[string]string{"node-version": version, "cache": "npm"},
			})
		case "go":
			version := "stable"
			if m := goVersion.FindString(t.Name); m != "" {
				version = m
			}
			steps = append(steps, gha.Step{
				Name: "Set up Go",
				Uses: "actions/setup-go@v5",
				With: map[string]string{"go-version": version},
			})
		}
	}
	return steps
}

func javaFrom(name string) string {
	if m := javaVersion.FindStringSubmatch(strings.ToLower(name)); m != nil {
		return m[1]
	}
	return "17"
}

func setupJava(version string) gha.Step {
	return gha.Step{
		Name: "Set up JDK " + version,
		Uses: "actions/setup-java@v4",
		With: map[string]string{"java-version": version, "distribution": "temurin"},
	}
}
