package dialog

import (
	"fmt"
	"strings"
)

// RenderTemplate substitutes {name} placeholders in a step template with the
// given values. A placeholder with no matching value is a configuration or
// programming defect and is reported as an error rather than silently
// rendered blank.
func RenderTemplate(template string, values map[string]string) (string, error) {
	var b strings.Builder
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated placeholder in template %q", template)
		}
		end += open

		name := rest[open+1 : end]
		if name == "" || strings.ContainsAny(name, " \t\n{") {
			return "", fmt.Errorf("malformed placeholder %q in template %q", rest[open:end+1], template)
		}
		value, ok := values[name]
		if !ok {
			return "", fmt.Errorf("template references missing placeholder %q", name)
		}

		b.WriteString(rest[:open])
		b.WriteString(value)
		rest = rest[end+1:]
	}
}
