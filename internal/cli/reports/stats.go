package reports

import (
	"github.com/julianstephens/filialwatch/internal/cli"
)

type StatsCmd struct {
	Date    string `arg:"" optional:"" help:"Any date in the week (YYYY-MM-DD, DD/MM/YYYY or 'hoy')."`
	Program string `short:"p" help:"Program id or name (defaults to the last one used)."`
	Filter  string `short:"f" help:"Only affiliates whose name contains this text."`
	Day     bool   `help:"Count only the given date instead of the whole week."`
}

func (c *StatsCmd) Run(ctx *cli.Context) error {
	sc, err := openScope(ctx, c.Program, c.Date, c.Filter, c.Day)
	if err != nil {
		return err
	}
	vm := sc.view()
	ctx.Printf("%s · %s\n", vm.Program.Nombre, vm.Period)
	for _, line := range vm.StatLines() {
		ctx.Printf("  %-16s %s\n", line[0]+":", line[1])
	}
	return nil
}
