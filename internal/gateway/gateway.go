// Package gateway is the client side of the backend HTTP/JSON contract.
// It converts between the backend shapes and the canonical models; target
// reasons cross the boundary only through the targets package.
package gateway

import (
	"context"
	"time"

	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/utils"
)

// Gateway is what the reporting store needs from the backend.
type Gateway interface {
	Health(ctx context.Context) (HealthResponse, error)
	Ping(ctx context.Context) error

	Programs(ctx context.Context) ([]models.Program, error)
	Affiliates(ctx context.Context) ([]models.Affiliate, error)
	Reports(ctx context.Context, from, to time.Time) (map[utils.Key]models.Report, error)
	PutReport(ctx context.Context, key utils.Key, r models.Report) (models.Report, error)
	Notes(ctx context.Context, weekStart string) ([]models.Note, error)
	PutNote(ctx context.Context, n models.Note) (models.Note, error)
}

// Admin manages the program and affiliate catalog.
type Admin interface {
	CreateProgram(ctx context.Context, p models.Program) (models.Program, error)
	UpdateProgram(ctx context.Context, p models.Program) (models.Program, error)
	DeleteProgram(ctx context.Context, id string) error
	CreateAffiliate(ctx context.Context, a models.Affiliate) (models.Affiliate, error)
	UpdateAffiliate(ctx context.Context, a models.Affiliate) (models.Affiliate, error)
	DeleteAffiliate(ctx context.Context, id string) error
}

// Backend is the full client surface. Client implements it.
type Backend interface {
	Gateway
	Admin
}
