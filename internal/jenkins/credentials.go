package jenkins

import "strings"

var bindingKinds = map[string]CredentialKind{
	"usernamePassword":      CredUsernamePassword,
	"usernameColonPassword": CredString,
	"string":                CredString,
	"file":                  CredFile,
	"sshUserPrivateKey":     CredSSHKey,
}

// ExtractCredentialBlocks returns every withCredentials scope in text with
// its bindings and the shell commands it wraps.
func ExtractCredentialBlocks(text string) []CredentialBlock {
	var out []CredentialBlock
	for _, c := range FindCalls(text, "withCredentials") {
		if c.Body == nil || len(c.Positional) == 0 {
			continue
		}
		block := CredentialBlock{Body: *c.Body}
		for _, item := range c.Positional[0].Items {
			if b, ok := parseBinding(item.Raw); ok {
				block.Bindings = append(block.Bindings, b)
			}
		}
		if len(block.Bindings) == 0 {
			continue
		}
		block.Commands = ExtractCommands(keepOnly(text, *c.Body))
		out = append(out, block)
	}
	return out
}

func parseBinding(raw string) (CredentialBinding, bool) {
	raw = strings.TrimSpace(raw)
	end := 0
	for end < len(raw) && isIdentByte(raw[end]) {
		end++
	}
	kind, ok := bindingKinds[raw[:end]]
	if !ok {
		return CredentialBinding{}, false
	}
	c, ok := parseCall(raw, raw[:end], 0, end)
	if !ok {
		return CredentialBinding{}, false
	}
	b := CredentialBinding{Kind: kind, SourceID: c.Str("credentialsId")}
	if b.SourceID == "" {
		return CredentialBinding{}, false
	}
	for _, key := range []string{"usernameVariable", "passwordVariable", "variable", "keyFileVariable", "passphraseVariable"} {
		if v := c.Str(key); v != "" {
			b.BoundNames = append(b.BoundNames, v)
		}
	}
	return b, true
}

// ExtractCredentials returns every credential reference in a stage,
// deduplicated by kind and source id in first-seen order: withCredentials
// bindings, environment credentials(), credentialsId arguments and
// sshagent ids.
func ExtractCredentials(text string) []CredentialBinding {
	var out []CredentialBinding
	seen := map[string]int{}
	add := func(b CredentialBinding) {
		key := string(b.Kind) + "\x00" + b.SourceID
		if i, ok := seen[key]; ok {
			out[i].BoundNames = appendUnique(out[i].BoundNames, b.BoundNames...)
			return
		}
		seen[key] = len(out)
		out = append(out, b)
	}
	for _, blk := range ExtractCredentialBlocks(text) {
		for _, b := range blk.Bindings {
			add(b)
		}
	}
	for _, e := range ExtractEnv(text) {
		if e.Credential != "" {
			add(CredentialBinding{Kind: CredString, SourceID: e.Credential, BoundNames: []string{e.Key}})
		}
	}
	for _, name := range []string{"git", "checkout"} {
		for _, c := range FindCalls(text, name) {
			if id := c.Str("credentialsId"); id != "" {
				add(CredentialBinding{Kind: CredString, SourceID: id})
			}
		}
	}
	for _, c := range FindCalls(text, "docker.withRegistry") {
		if len(c.Positional) > 1 && c.Positional[1].Str != "" {
			add(CredentialBinding{Kind: CredUsernamePassword, SourceID: c.Positional[1].Str})
		}
	}
	for _, c := range FindCalls(text, "sshagent") {
		var ids []Value
		if v, ok := c.Arg("credentials"); ok {
			ids = v.Items
		} else if len(c.Positional) > 0 {
			ids = c.Positional[0].Items
			if c.Positional[0].Kind == KindString {
				ids = c.Positional[:1]
			}
		}
		for _, id := range ids {
			if id.Str != "" {
				add(CredentialBinding{Kind: CredSSHKey, SourceID: id.Str})
			}
		}
	}
	return out
}

func appendUnique(dst []string, vals ...string) []string {
	for _, v := range vals {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
