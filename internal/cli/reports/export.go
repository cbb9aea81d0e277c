package reports

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/julianstephens/filialwatch/internal/cli"
	"github.com/julianstephens/filialwatch/internal/export"
)

// openFunc shows the written file. Tests replace it.
var openFunc = export.Open

type ExportCmd struct {
	Format  string `short:"F" enum:"xlsx,pdf,html,csv" default:"xlsx" help:"Output format: xlsx, pdf (print-ready document), html or csv."`
	Date    string `arg:"" optional:"" help:"Any date in the week (YYYY-MM-DD, DD/MM/YYYY or 'hoy')."`
	Program string `short:"p" help:"Program id or name (defaults to the last one used)."`
	Filter  string `short:"f" help:"Only affiliates whose name contains this text."`
	Day     bool   `help:"Export only the given date."`
	Output  string `short:"o" help:"Output file or directory (defaults to the current directory)." type:"path"`
	NoOpen  bool   `name:"no-open" help:"Do not open the document after writing it."`
}

func writerFor(format string) (func(io.Writer, export.ViewModel) error, string) {
	switch format {
	case "csv":
		return export.WriteCSV, "csv"
	case "pdf", "html":
		return export.WriteHTML, "html"
	}
	return export.WriteXLSX, "xlsx"
}

func (c *ExportCmd) target(vm export.ViewModel, ext string) string {
	name := export.FileName(vm, ext)
	if c.Output == "" {
		return name
	}
	if info, err := os.Stat(c.Output); err == nil && info.IsDir() {
		return filepath.Join(c.Output, name)
	}
	return c.Output
}

func (c *ExportCmd) Run(ctx *cli.Context) error {
	sc, err := openScope(ctx, c.Program, c.Date, c.Filter, c.Day)
	if err != nil {
		return err
	}
	vm := sc.view()
	write, ext := writerFor(c.Format)
	path := c.target(vm, ext)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f, vm); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	ctx.Printf("✓ Exported %s (%s) to %s\n", vm.Program.Nombre, vm.Period, path)

	// The document format is printed from the browser.
	if c.Format == "pdf" && !c.NoOpen {
		if err := openFunc(path); err != nil {
			return err
		}
		ctx.Printf("  Opened for printing\n")
	}
	return nil
}
