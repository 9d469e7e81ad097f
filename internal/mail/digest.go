package mail

import (
	"fmt"
	"html/template"
	"strings"
)

// DigestEntry is one category line of a weekly budget alert.
type DigestEntry struct {
	Category    string
	Spent       string
	Threshold   string
	PercentUsed int
}

var digestTmpl = template.Must(template.New("digest").Parse(`<html>
<body style="font-family: sans-serif;">
<h2>Weekly Budget Alert</h2>
<p>The following categories have reached 90% or more of their monthly budget:</p>
<table border="1" cellpadding="6" cellspacing="0">
<tr><th>Category</th><th>Spent</th><th>Budget</th><th>Used</th></tr>
{{range .Entries}}<tr>
<td>{{.Category}}</td>
<td>{{.Spent}}</td>
<td>{{.Threshold}}</td>
<td>{{.PercentUsed}}%</td>
</tr>
{{end}}</table>
<p>Totals cover {{.Period}}.</p>
</body>
</html>
`))

// RenderDigest builds the HTML body for a weekly alert email.
func RenderDigest(period string, entries []DigestEntry) (string, error) {
	var buf strings.Builder
	data := struct {
		Period  string
		Entries []DigestEntry
	}{Period: period, Entries: entries}
	if err := digestTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return buf.String(), nil
}
