package skills

import (
	"regexp"
)

// templateVarPattern matches `{{var_name}}` placeholders only; anything else
// in a skill body is left as literal text. This is the "restricted
// substitution syntax" §9 calls for in place of the source's loosely-typed
// body templating — no expression evaluation, no arbitrary code.
var templateVarPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// ExpandTemplate substitutes whitelisted `{{var}}` placeholders in body with
// values from vars. A placeholder whose name is not present in vars is left
// untouched so unresolved substitutions are visible rather than silently
// blanked.
func ExpandTemplate(body string, vars map[string]string) string {
	return templateVarPattern.ReplaceAllStringFunc(body, func(match string) string {
		sub := templateVarPattern.FindStringSubmatch(match)
		if len(sub) != 2 {
			return match
		}
		if v, ok := vars[sub[1]]; ok {
			return v
		}
		return match
	})
}
