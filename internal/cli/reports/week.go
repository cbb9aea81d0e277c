package reports

import (
	"github.com/julianstephens/filialwatch/internal/cli"
	"github.com/julianstephens/filialwatch/internal/constants"
)

type WeekCmd struct {
	Date    string `arg:"" optional:"" help:"Any date in the week (YYYY-MM-DD, DD/MM/YYYY or 'hoy')."`
	Program string `short:"p" help:"Program id or name (defaults to the last one used)."`
	Filter  string `short:"f" help:"Only affiliates whose name contains this text."`
	Notes   bool   `help:"Show the week's notes under the table."`
}

func (c *WeekCmd) Run(ctx *cli.Context) error {
	sc, err := openScope(ctx, c.Program, c.Date, c.Filter, false)
	if err != nil {
		return err
	}
	vm := sc.view()

	ctx.Printf("%s (%s, %s) · %s\n", vm.Program.Nombre, vm.Program.Horario, vm.Program.DiasSemana, vm.Period)
	if len(vm.Rows) == 0 {
		ctx.Printf("No active affiliates found\n")
		return nil
	}
	ctx.Printf("%s\n", renderTable(vm))
	ctx.Printf("Efectividad %d%% · %d transmitidas, %d tardías, %d no transmitidas, %d pendientes de %d\n",
		vm.Stats.Effectiveness(), vm.Stats.Transmitidas, vm.Stats.Tardias, vm.Stats.NoTransmitidas, vm.Stats.Pendientes, vm.Stats.Total)

	if c.Notes {
		for _, n := range vm.Notes {
			ctx.Printf("  %s: %s\n", n.Affiliate, n.Content)
		}
	}
	if n := sc.st.PendingCount(); n > 0 {
		ctx.Printf("⚠ %d unsynced edit(s), run '%s sync'\n", n, constants.AppName)
	}
	return nil
}

type DayCmd struct {
	Date    string `arg:"" optional:"" help:"Date (YYYY-MM-DD, DD/MM/YYYY or 'hoy')."`
	Program string `short:"p" help:"Program id or name (defaults to the last one used)."`
	Filter  string `short:"f" help:"Only affiliates whose name contains this text."`
}

func (c *DayCmd) Run(ctx *cli.Context) error {
	sc, err := openScope(ctx, c.Program, c.Date, c.Filter, true)
	if err != nil {
		return err
	}
	vm := sc.view()
	ctx.Printf("%s (%s) · %s\n", vm.Program.Nombre, vm.Program.Horario, vm.Period)
	if len(vm.Rows) == 0 {
		ctx.Printf("No active affiliates found\n")
		return nil
	}
	ctx.Printf("%s\n", renderTable(vm))
	return nil
}
