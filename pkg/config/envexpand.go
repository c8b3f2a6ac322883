package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv expands environment variables in YAML content using Go
// template syntax ({{.VAR}}), so crawler.yaml can reference secrets and
// per-environment values without committing them to disk.
//
// Examples:
//   - {{.DATABASE_URL}} → value of the DATABASE_URL environment variable
//   - {{.PROTOCOL}}://{{.HOST}}:{{.PORT}} → assembled from three variables
//
// Missing variables expand to the empty string; validation should catch
// required fields that end up empty. Malformed template syntax (a parse
// or execute error) passes the original bytes through unchanged, letting
// the YAML parser report against the literal content instead.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("crawler-config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, environMap()); err != nil {
		return data
	}
	return buf.Bytes()
}

func environMap() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	return env
}
