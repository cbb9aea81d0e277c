package backend

import (
	"context"
	"strings"
)

var demoPrograms = []programRow{
	{ID: "noticias", Nombre: "NOTICIAS", Horario: "05:00", DiasSemana: "DIARIO", IsActivo: true},
	{ID: "magazine", Nombre: "MAGAZINE", Horario: "09:00", DiasSemana: "DIARIO", IsActivo: true},
	{ID: "deportes", Nombre: "DEPORTES", Horario: "13:00", DiasSemana: "LUNES", IsActivo: true},
}

var demoAffiliates = []string{"LIMA", "AREQUIPA", "CUSCO", "TRUJILLO", "PIURA"}

// SeedDemo fills an empty catalog with a small demo set and returns how
// many rows it inserted.
func SeedDemo(ctx context.Context, repo *Repository) (int, error) {
	empty, err := repo.CatalogEmpty(ctx)
	if err != nil || !empty {
		return 0, err
	}
	n := 0
	for _, p := range demoPrograms {
		if _, err := repo.CreateProgram(ctx, p); err != nil {
			return n, err
		}
		n++
	}
	for _, name := range demoAffiliates {
		a := affiliateRow{ID: strings.ToLower(name), Nombre: name, IsActivo: true}
		if _, err := repo.CreateAffiliate(ctx, a); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
