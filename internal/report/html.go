package report

import (
	"html/template"
	"io"
)

var htmlReport = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>gencheck {{.Version}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.3em 0.6em; text-align: left; }
.pass { color: #1a7f37; font-weight: bold; }
.fail { color: #cf222e; font-weight: bold; }
pre { background: #f6f8fa; padding: 0.6em; }
</style>
</head>
<body>
<h1>gencheck run</h1>
<p>{{.Summary.Total}} scenario(s) run, {{.Summary.Passed}} passed, {{.Summary.Failed}} failed</p>
<table>
<tr><th>Scenario</th><th>Status</th><th>Class</th><th>Time</th></tr>
{{- range .Results}}
<tr>
<td>{{.Scenario}}</td>
{{- if .Passed}}<td class="pass">PASS</td>{{else}}<td class="fail">FAIL</td>{{end}}
<td>{{.Class}}</td>
<td>{{printf "%.0f" .DurationMS}}ms</td>
</tr>
{{- end}}
</table>
{{- range .Results}}{{if not .Passed}}
<h2>{{.Scenario}}</h2>
{{- if .Description}}<p>{{.Description}}</p>{{end}}
<pre>{{.Failure}}</pre>
{{- end}}{{end}}
</body>
</html>
`))

// WriteHTML writes run results as a self-contained HTML page.
func WriteHTML(w io.Writer, results []RunResult, version string) error {
	if results == nil {
		results = []RunResult{}
	}
	return htmlReport.Execute(w, JSONReport{
		Version: version,
		Summary: Summarize(results),
		Results: results,
	})
}
