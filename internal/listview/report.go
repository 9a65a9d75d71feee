package listview

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/jwalitptl/hms/internal/model"
)

// Letterhead is printed at the top and bottom of every report.
type Letterhead struct {
	Hospital string
	Address  string
	Phone    string
}

var reportFuncs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format("02 Jan 2006 15:04") },
	"inc":  func(i int) int { return i + 1 },
}

const reportLayout = `{{define "head"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body{font-family:Arial,sans-serif;margin:24px;color:#222}
header{border-bottom:2px solid #0b5394;margin-bottom:16px}
h1{margin:0;color:#0b5394}
table{width:100%;border-collapse:collapse;margin:12px 0}
th,td{border:1px solid #999;padding:6px;text-align:left}
th{background:#e6f3ff}
.flag-High,.flag-Low{color:#b45f06;font-weight:bold}
.flag-Critical{color:#c00;font-weight:bold}
footer{border-top:1px solid #999;margin-top:24px;font-size:12px;color:#666}
@media print{button{display:none}}
</style>
</head>
<body onload="window.print()">
<header>
<h1>{{.Head.Hospital}}</h1>
<p>{{.Head.Address}}{{if .Head.Phone}} | {{.Head.Phone}}{{end}}</p>
<h2>{{.Title}}</h2>
</header>
{{end}}
{{define "patient"}}<section>
<table>
<tr><th>Patient Name</th><td>{{.PatientName}}</td><th>Patient ID</th><td>{{.PatientUniqueID}}</td></tr>
<tr><th>Age</th><td>{{.Age}}</td><th>Gender</th><td>{{.Gender}}</td></tr>
<tr><th>Doctor</th><td>{{.DoctorName}}</td><th>Priority</th><td>{{.Priority}}</td></tr>
<tr><th>Test</th><td>{{.TestName}}</td><th>Category</th><td>{{.Category}}</td></tr>
<tr><th>Performed By</th><td>{{.PerformedBy}}</td><th>Performed Date</th><td>{{.PerformedDate}}</td></tr>
<tr><th>Status</th><td>{{.Status}}</td><th>Diagnosis</th><td>{{.Diagnosis}}</td></tr>
</table>
</section>
{{end}}
{{define "foot"}}<footer>
<p>{{.Head.Hospital}}. Printed {{date .Printed}}.</p>
<p>This report is confidential and intended for the named patient and their care team.</p>
</footer>
</body>
</html>
{{end}}`

var labReport = template.Must(template.Must(template.New("lab").Funcs(reportFuncs).Parse(reportLayout)).Parse(`{{template "head" .}}
{{template "patient" .Record}}
<section>
<h3>Results</h3>
<table>
<tr><th>#</th><th>Parameter</th><th>Value</th><th>Unit</th><th>Normal Range</th><th>Flag</th><th>Notes</th></tr>
{{range $i, $p := .Record.Parameters}}<tr>
<td>{{inc $i}}</td><td>{{$p.Name}}</td><td>{{$p.Value}}</td><td>{{$p.Unit}}</td><td>{{$p.NormalRange}}</td><td class="flag-{{$p.Flag}}">{{$p.Flag}}</td><td>{{$p.Notes}}</td>
</tr>{{else}}<tr><td colspan="7">No parameters recorded</td></tr>{{end}}
</table>
{{with .Record.Notes}}<p><strong>Notes:</strong> {{.}}</p>{{end}}
{{with .Record.Instructions}}<p><strong>Instructions:</strong> {{.}}</p>{{end}}
{{with .Record.ReportDate}}<p><strong>Report Date:</strong> {{.}}</p>{{end}}
</section>
{{template "foot" .}}`))

var xrayReport = template.Must(template.Must(template.New("xray").Funcs(reportFuncs).Parse(reportLayout)).Parse(`{{template "head" .}}
{{template "patient" .Record}}
<section>
<h3>Images</h3>
<table>
<tr><th>#</th><th>File</th><th>Note</th></tr>
{{range $i, $img := .Record.Images}}<tr>
<td>{{inc $i}}</td><td>{{$img.Filename}}</td><td>{{$img.Note}}</td>
</tr>{{else}}<tr><td colspan="3">No images</td></tr>{{end}}
</table>
{{with .Record.OverallNotes}}<p><strong>Findings:</strong> {{.}}</p>{{end}}
{{with .Record.Instructions}}<p><strong>Instructions:</strong> {{.}}</p>{{end}}
{{if .Record.WalkIn}}<p><em>Walk-in patient</em></p>{{end}}
</section>
{{template "foot" .}}`))

type reportData[T any] struct {
	Title   string
	Head    Letterhead
	Record  T
	Printed time.Time
}

// RenderLabReport writes a printable HTML lab report for one complete
// record.
func RenderLabReport(w io.Writer, head Letterhead, rec *model.LabRecord) error {
	if rec == nil {
		return fmt.Errorf("no lab record to print")
	}
	data := reportData[*model.LabRecord]{
		Title:   "Laboratory Report: " + rec.TestName,
		Head:    head,
		Record:  rec,
		Printed: time.Now(),
	}
	if err := labReport.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render lab report: %w", err)
	}
	return nil
}

// RenderXrayReport writes a printable HTML x-ray report for one complete
// record.
func RenderXrayReport(w io.Writer, head Letterhead, rec *model.XrayRecord) error {
	if rec == nil {
		return fmt.Errorf("no x-ray record to print")
	}
	data := reportData[*model.XrayRecord]{
		Title:   "Radiology Report: " + rec.TestName,
		Head:    head,
		Record:  rec,
		Printed: time.Now(),
	}
	if err := xrayReport.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render x-ray report: %w", err)
	}
	return nil
}
