package system

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/filialwatch/internal/cli"
	"github.com/julianstephens/filialwatch/internal/constants"
	"github.com/julianstephens/filialwatch/internal/models"
)

// promptFunc asks for missing credentials. Tests replace it.
var promptFunc = func(username, password *string) error {
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Usuario").Value(username),
		huh.NewInput().Title("Contraseña").EchoMode(huh.EchoModePassword).Value(password),
	)).Run()
}

type LoginCmd struct {
	Admin    bool   `help:"Open an admin session instead of an operator session."`
	User     string `short:"u" help:"Username."`
	Password string `env:"FILIALWATCH_PASSWORD" help:"Password (prompted when omitted)."`
}

func sessionKind(admin bool) models.SessionKind {
	if admin {
		return models.SessionAdmin
	}
	return models.SessionOperador
}

func (c *LoginCmd) Run(ctx *cli.Context) error {
	m, err := ctx.Sessions()
	if err != nil {
		return err
	}

	username, password := c.User, c.Password
	if username == "" || password == "" {
		if err := promptFunc(&username, &password); err != nil {
			return fmt.Errorf("login cancelled: %w", err)
		}
	}

	kind := sessionKind(c.Admin)
	sess, err := m.Login(kind, strings.TrimSpace(username), password)
	if err != nil {
		return err
	}
	ctx.Printf("✓ %s session open for %s until %s\n", kind, sess.Username, sess.ExpiresAt.Local().Format("02/01/2006 "+constants.TimeFormat))
	return nil
}

type LogoutCmd struct {
	Admin bool `help:"Close the admin session."`
	All   bool `help:"Close both sessions."`
}

func (c *LogoutCmd) Run(ctx *cli.Context) error {
	m, err := ctx.Sessions()
	if err != nil {
		return err
	}
	kinds := []models.SessionKind{sessionKind(c.Admin)}
	if c.All {
		kinds = []models.SessionKind{models.SessionOperador, models.SessionAdmin}
	}
	for _, kind := range kinds {
		if err := m.Logout(kind); err != nil {
			return err
		}
		ctx.Printf("✓ %s session closed\n", kind)
	}
	return nil
}

// describeSession renders one session line for status output.
func describeSession(kind models.SessionKind, sess models.Session, ok bool, now time.Time) string {
	if !ok {
		return fmt.Sprintf("%-9s not signed in", kind)
	}
	left := sess.ExpiresAt.Sub(now).Round(time.Minute)
	return fmt.Sprintf("%-9s %s (expires in %s)", kind, sess.Username, left)
}
