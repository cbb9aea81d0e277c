// Package clitest builds command contexts wired to a real local state and
// an in-process backend for command tests.
package clitest

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/julianstephens/filialwatch/internal/backend"
	"github.com/julianstephens/filialwatch/internal/cli"
	"github.com/julianstephens/filialwatch/internal/constants"
	"github.com/julianstephens/filialwatch/internal/gateway"
	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/storage"
)

const Token = "clitest-token"

// Env is one test's local state, backend and captured output.
type Env struct {
	Ctx    *cli.Context
	Out    *bytes.Buffer
	Store  *storage.SQLiteStore
	Repo   *backend.Repository
	Server *httptest.Server
	Client *gateway.Client
}

// New initializes local state in t.TempDir and starts a backend.
func New(t *testing.T) *Env {
	t.Helper()
	dir := t.TempDir()

	st := storage.NewSQLiteStore(filepath.Join(dir, "state.db"))
	if err := st.Init(); err != nil {
		t.Fatalf("failed to init local state: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	repo, err := backend.OpenRepository(context.Background(), filepath.Join(dir, "backend.db"))
	if err != nil {
		t.Fatalf("failed to open backend repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	hub := backend.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	server := httptest.NewServer(backend.NewServer(repo, hub, backend.WithToken(Token)).Router())
	t.Cleanup(server.Close)

	client, err := gateway.NewClient(server.URL, gateway.WithToken(Token))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	out := &bytes.Buffer{}
	ctx := &cli.Context{
		Store:   st,
		Config:  cli.Config{APIURL: server.URL, Token: Token},
		Out:     out,
		Gateway: client,
	}
	return &Env{Ctx: ctx, Out: out, Store: st, Repo: repo, Server: server, Client: client}
}

// Seed creates the NOTICIAS program (daily, 05:00) and the LIMA and CUSCO
// affiliates.
func (e *Env) Seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if _, err := e.Client.CreateProgram(ctx, models.Program{ID: "noticias", Nombre: "NOTICIAS", Horario: "05:00", DiasSemana: models.DiasDiario, IsActivo: true}); err != nil {
		t.Fatalf("CreateProgram failed: %v", err)
	}
	for _, a := range []models.Affiliate{{ID: "lima", Nombre: "LIMA", IsActivo: true}, {ID: "cusco", Nombre: "CUSCO", IsActivo: true}} {
		if _, err := e.Client.CreateAffiliate(ctx, a); err != nil {
			t.Fatalf("CreateAffiliate failed: %v", err)
		}
	}
}

// Login opens a session of kind with the default credentials.
func (e *Env) Login(t *testing.T, kind models.SessionKind) {
	t.Helper()
	m, err := e.Ctx.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	user, pass := constants.DefaultOperatorUser, constants.DefaultOperatorPass
	if kind == models.SessionAdmin {
		user, pass = constants.DefaultAdminUser, constants.DefaultAdminPass
	}
	if _, err := m.Login(kind, user, pass); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
}
