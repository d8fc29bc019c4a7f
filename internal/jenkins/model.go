package jenkins

// Stage is one `stage("name") { ... }` unit. Body is the raw inner text.
type Stage struct {
	Name string
	Body string
}

// StageNode is one element of the stage forest. A node with Parallel
// members is a parallel group; the outer stage only contributes
// directives that its members inherit.
type StageNode struct {
	Stage
	Parallel []Stage
}

// IsParallel reports whether the node is a parallel group.
func (n StageNode) IsParallel() bool { return len(n.Parallel) > 0 }

// AgentKind identifies the populated Agent variant.
type AgentKind int

const (
	AgentUnset AgentKind = iota
	AgentAny
	AgentNone
	AgentLabel
	AgentDocker
)

// Agent describes where a stage or the whole pipeline executes.
type Agent struct {
	Kind      AgentKind
	Label     string
	Image     string
	Args      string
	ReuseNode bool
}

// Tool is one entry of a tools block, e.g. maven 'Maven 3.8'.
type Tool struct {
	Kind string
	Name string
}

// EnvVar is one environment assignment. Credential is set when the value
// is a credentials('id') binding instead of a literal.
type EnvVar struct {
	Key        string
	Value      string
	Credential string
}

// ParamKind identifies a build parameter declaration.
type ParamKind string

const (
	ParamString   ParamKind = "string"
	ParamBoolean  ParamKind = "boolean"
	ParamChoice   ParamKind = "choice"
	ParamText     ParamKind = "text"
	ParamPassword ParamKind = "password"
)

// Parameter is one entry of the pipeline parameters block.
type Parameter struct {
	Kind        ParamKind
	Name        string
	Default     string
	Description string
	Choices     []string
}

// CredentialKind identifies the kind of secret material a binding needs.
type CredentialKind string

const (
	CredUsernamePassword CredentialKind = "usernamePassword"
	CredString           CredentialKind = "string"
	CredFile             CredentialKind = "file"
	CredSSHKey           CredentialKind = "sshKey"
)

// CredentialBinding is a declared need for secret material and the local
// variable names the stage uses to reference it.
type CredentialBinding struct {
	Kind       CredentialKind
	SourceID   string
	BoundNames []string
}

// CredentialBlock is one withCredentials([...]) { ... } scope.
type CredentialBlock struct {
	Bindings []CredentialBinding
	Body     Span
	Commands []ShellCommand
}

// ShellCommand is one generic command recovered from sh/echo steps.
// Offset is the position of the originating step inside the stage body.
type ShellCommand struct {
	Text   string
	Offset int
}

// UnresolvedStep is an sh or echo step whose argument is not a literal.
type UnresolvedStep struct {
	Step   string
	Source string
	Offset int
}

// GitKind identifies the shape of a source-control step.
type GitKind string

const (
	GitSCM      GitKind = "scm"
	GitStandard GitKind = "standard"
	GitClone    GitKind = "clone"
)

// GitStep is one checkout/clone operation.
type GitStep struct {
	Kind          GitKind
	URL           string
	Branch        string
	CredentialsID string
	Dir           string
}

// DockerKind identifies a container operation.
type DockerKind string

const (
	DockerBuild DockerKind = "build"
	DockerPush  DockerKind = "push"
	DockerLogin DockerKind = "login"
)

// DockerStep is one container build/push/login operation. Command holds
// the original shell text when the step came from an sh command.
type DockerStep struct {
	Kind          DockerKind
	Command       string
	Image         string
	Context       string
	Dockerfile    string
	Registry      string
	CredentialsID string
	Offset        int
}

// DeployCommand is one orchestration command (kubectl or helm).
type DeployCommand struct {
	Tool    string
	Command string
	Offset  int
}

// SonarStep is one quality-scan operation.
type SonarStep struct {
	Server      string
	Commands    []string
	ProjectKey  string
	ProjectName string
	Scope       Span
}

// InputStep is one manual-approval gate.
type InputStep struct {
	Message       string
	OK            string
	Submitter     string
	HasParameters bool
}

// ScriptBlock is one script { ... } body with its complexity heuristics.
type ScriptBlock struct {
	Body            string
	Lines           int
	GroovySpecific  bool
	UsesJenkinsAPI  bool
	HasConditionals bool
	HasLoops        bool
}

// RequiresManualConversion reports whether the block has no safe
// automatic translation.
func (s ScriptBlock) RequiresManualConversion() bool {
	return s.GroovySpecific || s.Lines > 10 || s.UsesJenkinsAPI
}

// PluginCall is a plugin-provided step with no automatic mapping.
type PluginCall struct {
	Plugin  string
	Snippet string
	Offset  int
}

// PredicateKind identifies one when-predicate.
type PredicateKind string

const (
	PredBranch        PredicateKind = "branch"
	PredEnvironment   PredicateKind = "environment"
	PredExpression    PredicateKind = "expression"
	PredChangeRequest PredicateKind = "changeRequest"
	PredBuildingTag   PredicateKind = "buildingTag"
	PredTag           PredicateKind = "tag"
)

// Predicate is one conjunct of a when condition. Name is used by
// environment predicates; Value holds the branch pattern, comparison
// value, expression or tag pattern.
type Predicate struct {
	Kind     PredicateKind
	Name     string
	Value    string
	HasValue bool
}

// WhenCondition is the conjunction of a stage's when predicates.
// Combinators lists anyOf/allOf/not occurrences, which are not flattened.
type WhenCondition struct {
	Predicates  []Predicate
	Combinators []string
}

// Complex reports whether the condition uses boolean combinators.
func (w WhenCondition) Complex() bool { return len(w.Combinators) > 0 }

// PostCondition is a lifecycle outcome a post block reacts to.
type PostCondition string

const (
	PostAlways   PostCondition = "always"
	PostSuccess  PostCondition = "success"
	PostFailure  PostCondition = "failure"
	PostUnstable PostCondition = "unstable"
	PostAborted  PostCondition = "aborted"
	PostCleanup  PostCondition = "cleanup"
)

// PostConditions lists the recognised conditions in the order their
// steps are emitted.
var PostConditions = []PostCondition{PostAlways, PostSuccess, PostFailure, PostUnstable, PostAborted, PostCleanup}

// PostEffect is one effect inside a post condition. The concrete types
// below are the closed set of variants.
type PostEffect interface {
	EffectKind() string
}

type ArchiveEffect struct {
	Artifacts        string
	AllowEmpty       bool
	OnlyIfSuccessful bool
}

type JUnitEffect struct {
	Results    string
	AllowEmpty bool
}

type CoverageEffect struct {
	Path string
}

type HTMLReportEffect struct {
	Dir   string
	Files string
	Name  string
}

type MailEffect struct {
	To      string
	Subject string
	Body    string
}

type EmailExtEffect struct {
	To      string
	Subject string
}

type SlackEffect struct {
	Channel string
	Message string
	Color   string
}

type CleanupEffect struct{}

type CommandEffect struct {
	Command string
}

type ScriptEffect struct {
	Body string
}

func (ArchiveEffect) EffectKind() string    { return "archive" }
func (JUnitEffect) EffectKind() string      { return "junit" }
func (CoverageEffect) EffectKind() string   { return "coverage" }
func (HTMLReportEffect) EffectKind() string { return "publishHTML" }
func (MailEffect) EffectKind() string       { return "mail" }
func (EmailExtEffect) EffectKind() string   { return "emailext" }
func (SlackEffect) EffectKind() string      { return "slack" }
func (CleanupEffect) EffectKind() string    { return "cleanup" }
func (CommandEffect) EffectKind() string    { return "command" }
func (ScriptEffect) EffectKind() string     { return "script" }

// PostClause is the effects attached to one condition.
type PostClause struct {
	Condition PostCondition
	Effects   []PostEffect
}

// PostActionSet is the ordered list of clauses of one post block.
type PostActionSet []PostClause

// Conditions returns the conditions present, in emission order.
func (p PostActionSet) Conditions() []PostCondition {
	out := make([]PostCondition, 0, len(p))
	for _, c := range p {
		out = append(out, c.Condition)
	}
	return out
}

// Features is everything extracted from one stage body.
type Features struct {
	Agent            *Agent
	Tools            []Tool
	Env              []EnvVar
	Credentials      []CredentialBinding
	CredentialBlocks []CredentialBlock
	Git              []GitStep
	Sonar            []SonarStep
	Docker           []DockerStep
	Deploy           []DeployCommand
	Inputs           []InputStep
	Scripts          []ScriptBlock
	Plugins          []PluginCall
	When             *WhenCondition
	Post             PostActionSet
	Commands         []ShellCommand
	Unresolved       []UnresolvedStep
	TimeoutMinutes   int
}

// Pipeline is the parsed top-level pipeline.
type Pipeline struct {
	Agent          Agent
	Tools          []Tool
	Env            []EnvVar
	Parameters     []Parameter
	Stages         []StageNode
	Post           PostActionSet
	TimeoutMinutes int
	// Truncated is set when an unterminated block cut stage decomposition
	// short.
	Truncated bool
}
