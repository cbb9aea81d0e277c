package export

import (
	"embed"
	"html/template"
	"io"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(template.New("report.html.tmpl").Funcs(template.FuncMap{
	"cellClass": cellClass,
}).ParseFS(templateFS, "templates/report.html.tmpl"))

// cellClass colours a table cell by estado. Column 0 is the affiliate name.
func cellClass(vm ViewModel, r Row, col int) string {
	var c Cell
	switch {
	case vm.Scope == ScopeDay && len(r.Cells) > 0:
		c = r.Cells[0]
	case vm.Scope == ScopeWeek && col-1 < len(r.Cells):
		c = r.Cells[col-1]
	default:
		return ""
	}
	if !c.Airs {
		return "na"
	}
	return string(c.Report.Estado)
}

// WriteHTML renders vm as a print-ready page that opens the print dialog
// once loaded.
func WriteHTML(w io.Writer, vm ViewModel) error {
	return reportTemplate.Execute(w, vm)
}
