package cli

import (
	"bytes"
	"encoding/json"
	"text/template"
	"time"
)

const statusTemplate = `
=== Fieldsync Status ===

Server:     {{.ServerURL}}
Database:   {{.DatabasePath}}
{{- if .Enrolled }}
Device:     {{.DeviceID}} ({{.Role}})
Token:      {{if .TokenValid}}valid until {{stamp .TokenExpiresAt}}{{else}}expired, will log in on next sync{{end}}
{{- else }}
Device:     not enrolled
{{- end }}
Checkpoint: {{.Checkpoint}}
Last sync:  {{stamp .LastSyncAt}}
Outbox:     {{.Outbox}} pending, {{.Failed}} failed
Media:      {{.MediaPending}} waiting for upload
Conflicts:  {{.Conflicts}}
`

const entityTemplate = `
=== {{.Ref}} ===

Version: {{.Version}}{{if eq .Version 0}} (not confirmed by server){{end}}
Updated: {{stamp .UpdatedAt}}
{{- if .Deleted }}
Deleted: pending confirmation
{{- end }}

{{pretty .Payload}}
`

const entityListTemplate = `{{if not .}}No entities found
{{else}}{{range .}}{{printf "%-14s" .Ref.Type}} {{printf "%-24s" .Ref.ID}} v{{.Version}}{{if .Deleted}} (deleted){{end}}
{{end}}
Total: {{len .}}
{{end}}`

const outboxTemplate = `{{if not .}}Outbox is empty
{{else}}{{range .}}#{{.ID}} {{printf "%-7s" .Operation}} {{.Ref}} base={{.BaseVersion}} status={{.Status}}{{if .RetryCount}} retries={{.RetryCount}}{{end}}
{{- if .LastError}}
    last error: {{.LastError}}
{{- end}}
{{end}}
Total: {{len .}}
{{end}}`

const mediaTemplate = `Queued media {{.ID}} for {{.Ref}}
File: {{.FilePath}}
Type: {{.ContentType}}
`

const cycleTemplate = `Sync finished in {{.Duration}}
Pushed:    {{.Pushed}} ({{.Applied}} applied, {{.Conflicts}} conflicts)
Media:     {{.MediaUploaded}} uploaded
Pulled:    {{.Pulled}}
{{- range .Errors}}
Error:     {{.}}
{{- end}}
`

const conflictListTemplate = `{{if not .}}No conflicts
{{else}}{{range .}}
Conflict {{.ID}} [{{.Status}}]
  Entity:   {{.Ref}} ({{.Operation}})
  Device:   {{.DeviceID}}
  Versions: client base {{.ClientVersion}}, server {{.ServerVersion}}
  Detected: {{stamp .DetectedAt}}
  Client:   {{.ClientPayload}}
  Server:   {{.ServerPayload}}
{{- if .ResolvedBy}}
  Resolved: by {{.ResolvedBy}}
{{- end}}
{{end}}
Total: {{len .}}
{{end}}`

const versionTemplate = `Fieldsync Client
Version:    {{.Version}}
Build Date: {{.BuildDate}}
Git Commit: {{.GitCommit}}
`

var templateFuncs = template.FuncMap{
	"pretty": prettyJSON,
	"stamp":  stamp,
}

// prettyJSON форматирует payload; невалидный JSON выводится как есть
func prettyJSON(payload string) string {
	if payload == "" {
		return "(empty)"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(payload), "", "  "); err != nil {
		return payload
	}
	return buf.String()
}

func stamp(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format(time.DateTime)
	case int64:
		if t == 0 {
			return "-"
		}
		return time.Unix(t, 0).Local().Format(time.DateTime)
	default:
		return "-"
	}
}
