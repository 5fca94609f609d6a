package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"harness/pkg/logging"
)

const artifactTimeFormat = "20060102-150405"

// WriteJSON writes the machine-readable report into dir and returns the
// file path.
func WriteJSON(r *RunReport, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("harness-report-%s.json",
		r.StartedAt.Format(artifactTimeFormat)))
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	logging.Info("report", "wrote %s", path)
	return path, nil
}

// narrativeTmpl renders the human-facing failure summary, grouped by where
// the fault most likely lies so a reader knows which codebase to open
// first.
var narrativeTmpl = template.Must(template.New("narrative").
	Funcs(sprig.TxtFuncMap()).
	Parse(`Run {{ .RunID }} — {{ .StartedAt.Format "2006-01-02 15:04:05" }}
{{ repeat 60 "=" }}
{{ .Passed }}/{{ .ExpectedTotal }} passed ({{ printf "%.1f" (mulf .SuccessRate 100.0) }}%), {{ .Failed }} failed, {{ .Skipped }} skipped in {{ .Duration }}
{{- if .SuiteFailures }}

SUITE FAILURES
{{ repeat 60 "-" }}
{{- range .SuiteFailures }}
  {{ .Group }}: {{ .Reason }}
{{- end }}
{{- end }}
{{- range $source, $outcomes := .Failures }}

{{ upper $source }} FAILURES ({{ len $outcomes }})
{{ repeat 60 "-" }}
{{- range $outcomes }}
  {{ .Group }}/{{ .Name }} [{{ .Category }}]
    {{ .Error }}
    fix: {{ default "unknown" .FixLocation }}
{{- end }}
{{- end }}
`))

// WriteNarrative writes a plain-text account of the run next to the JSON
// artifact and returns the file path.
func WriteNarrative(r *RunReport, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir %s: %w", dir, err)
	}

	var buf strings.Builder
	err := narrativeTmpl.Execute(&buf, struct {
		*RunReport
		Failures map[string][]TestOutcome
	}{r, r.failuresBySource()})
	if err != nil {
		return "", fmt.Errorf("render narrative: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("harness-report-%s.txt",
		r.StartedAt.Format(artifactTimeFormat)))
	if err := os.WriteFile(path, []byte(buf.String()), 0o644); err != nil {
		return "", fmt.Errorf("write narrative %s: %w", path, err)
	}
	logging.Info("report", "wrote %s", path)
	return path, nil
}

// WriteTranscripts dumps each service's captured output into dir, one file
// per service, timestamped like the other artifacts.
func WriteTranscripts(transcripts map[string]string, startedAt time.Time, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir %s: %w", dir, err)
	}
	for name, output := range transcripts {
		path := filepath.Join(dir, fmt.Sprintf("harness-%s-%s.log",
			name, startedAt.Format(artifactTimeFormat)))
		if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
			return fmt.Errorf("write transcript %s: %w", path, err)
		}
	}
	return nil
}
