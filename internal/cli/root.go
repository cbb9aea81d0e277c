package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/julianstephens/filialwatch/internal/constants"
	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/gateway"
	"github.com/julianstephens/filialwatch/internal/keyring"
	"github.com/julianstephens/filialwatch/internal/logger"
	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/monitor"
	"github.com/julianstephens/filialwatch/internal/notifier"
	"github.com/julianstephens/filialwatch/internal/session"
	"github.com/julianstephens/filialwatch/internal/storage"
	"github.com/julianstephens/filialwatch/internal/store"
	"github.com/julianstephens/filialwatch/internal/utils"
)

// Config is what the root flags and environment resolve to.
type Config struct {
	APIURL        string
	Token         string
	WebhookURL    string
	WebhookSecret string
	OperatorUser  string
	OperatorHash  string
	AdminUser     string
	AdminHash     string
}

type Context struct {
	Store  storage.Provider
	Config Config
	Out    io.Writer

	// Gateway, when set, replaces the HTTP client. Tests use it.
	Gateway gateway.Backend

	sessions *session.Manager
	conn     *monitor.Connection
}

// Stdout is where commands print.
func (c *Context) Stdout() io.Writer {
	if c.Out != nil {
		return c.Out
	}
	return os.Stdout
}

func (c *Context) Printf(format string, args ...interface{}) {
	fmt.Fprintf(c.Stdout(), format, args...)
}

// APIToken returns the configured token, falling back to the keyring.
func (c *Context) APIToken() string {
	if c.Config.Token != "" {
		return c.Config.Token
	}
	token, err := keyring.GetAPIToken()
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			logger.Debug("Keyring lookup failed", "error", err)
		}
		return ""
	}
	return token
}

// Client returns the backend gateway.
func (c *Context) Client() (gateway.Backend, error) {
	if c.Gateway != nil {
		return c.Gateway, nil
	}
	client, err := gateway.NewClient(c.Config.APIURL, gateway.WithToken(c.APIToken()))
	if err != nil {
		return nil, err
	}
	c.Gateway = client
	return client, nil
}

// Sessions returns the session manager over the local state.
func (c *Context) Sessions() (*session.Manager, error) {
	if c.sessions != nil {
		return c.sessions, nil
	}
	settings, err := c.Store.GetSettings()
	if err != nil {
		return nil, err
	}
	var opts []session.Option
	if c.Config.OperatorHash != "" {
		opts = append(opts, session.WithCredentials(models.SessionOperador, orDefault(c.Config.OperatorUser, constants.DefaultOperatorUser), c.Config.OperatorHash))
	}
	if c.Config.AdminHash != "" {
		opts = append(opts, session.WithCredentials(models.SessionAdmin, orDefault(c.Config.AdminUser, constants.DefaultAdminUser), c.Config.AdminHash))
	}
	m, err := session.NewManager(c.Store, settings.SessionSecret, opts...)
	if err != nil {
		return nil, err
	}
	c.sessions = m
	return m, nil
}

// Connection is the process-wide connectivity state.
func (c *Context) Connection() *monitor.Connection {
	if c.conn == nil {
		c.conn = monitor.NewConnection()
	}
	return c.conn
}

// Notifier returns the connectivity webhook, disabled when unconfigured.
func (c *Context) Notifier() *notifier.Notifier {
	return notifier.New(c.Config.WebhookURL, c.Config.WebhookSecret)
}

// NewReportStore builds the reporting store for the range without fetching.
func (c *Context) NewReportStore(from, to time.Time) (*store.Store, error) {
	gw, err := c.Client()
	if err != nil {
		return nil, err
	}
	sessions, err := c.Sessions()
	if err != nil {
		return nil, err
	}
	st := store.New(gw,
		store.WithAccess(sessions),
		store.WithPersistence(c.Store),
		store.WithConnection(c.Connection()),
	)
	st.SetRange(from, to)
	return st, nil
}

// OpenReports builds the reporting store and waits for the first refresh.
// A failed refresh still returns the store, holding any restored pending
// writes, together with an ErrOffline error.
func (c *Context) OpenReports(ctx context.Context, from, to time.Time) (*store.Store, error) {
	st, err := c.NewReportStore(from, to)
	if err != nil {
		return nil, err
	}
	if ok := <-st.Initialize(ctx, nil, nil); !ok {
		return st, fmt.Errorf("%w: %s", apperrors.ErrOffline, st.Status().LastError)
	}
	return st, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// ResolveProgram finds a program by id or name, defaulting to the first
// active program when arg is empty.
func ResolveProgram(st *store.Store, arg string) (models.Program, error) {
	if strings.TrimSpace(arg) == "" {
		active := models.ActivePrograms(st.Programs())
		if len(active) == 0 {
			return models.Program{}, fmt.Errorf("no active programs: %w", apperrors.ErrNotFound)
		}
		return active[0], nil
	}
	p, ok := st.Program(arg)
	if !ok {
		return models.Program{}, fmt.Errorf("program %q: %w", arg, apperrors.ErrNotFound)
	}
	return p, nil
}

func ResolveAffiliate(st *store.Store, arg string) (models.Affiliate, error) {
	a, ok := st.Affiliate(arg)
	if !ok {
		return models.Affiliate{}, fmt.Errorf("affiliate %q: %w", arg, apperrors.ErrNotFound)
	}
	return a, nil
}

// WeekRange parses a date argument and returns the business week around it.
func WeekRange(arg string) (utils.Week, error) {
	d, err := utils.ParseLocalDate(arg)
	if err != nil {
		return utils.Week{}, apperrors.Validationf("%v", err)
	}
	return utils.WeekOf(d), nil
}
