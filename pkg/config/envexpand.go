package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv substitutes environment variables referenced as {{.VAR_NAME}} in
// raw config bytes. Template placeholders are used instead of $VAR expansion
// because source configs routinely carry literal dollar signs (regex anchors,
// passwords, shell fragments in stdio_args) that plain expansion would mangle.
//
// Unset variables render as empty strings; config validation rejects required
// fields left blank. Content that fails to parse or execute as a template is
// returned unchanged, so YAML without placeholders always passes through.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	env := make(map[string]string)
	for _, entry := range os.Environ() {
		if key, value, ok := strings.Cut(entry, "="); ok && key != "" {
			env[key] = value
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, env); err != nil {
		return data
	}
	return buf.Bytes()
}
