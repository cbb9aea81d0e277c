package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/julianstephens/filialwatch/internal/constants"
	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/logger"
	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/utils"
)

// StatusError is a non-2xx backend reply.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
}

// Unwrap maps the status onto the application's error kinds.
func (e *StatusError) Unwrap() error {
	switch {
	case e.Code == http.StatusNotFound:
		return apperrors.ErrNotFound
	case e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden:
		return apperrors.ErrForbidden
	case e.Code == http.StatusBadRequest || e.Code == http.StatusUnprocessableEntity:
		return apperrors.ErrValidation
	case e.Code >= 500:
		return apperrors.ErrWriteFailed
	}
	return nil
}

// Client talks to the backend over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the bearer token sent on every request.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// NewClient builds a client for the backend at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: &http.Client{Timeout: constants.RequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root the client was built for.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("building %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s %s: %w", method, path, ctxErr)
		}
		return fmt.Errorf("%w: %s %s: %v", apperrors.ErrOffline, method, path, err)
	}
	defer resp.Body.Close()
	logger.Debug("Backend request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{Method: method, Path: path, Code: resp.StatusCode}
		var er ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &er) == nil && er.Error != "" {
			se.Message = er.Error
		} else {
			se.Message = strings.TrimSpace(string(raw))
		}
		return se
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

// Health calls GET /health and fails unless the backend reports healthy.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var h HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &h); err != nil {
		return HealthResponse{}, err
	}
	if h.Status != "healthy" {
		return h, fmt.Errorf("%w: backend status %q", apperrors.ErrOffline, h.Status)
	}
	return h, nil
}

// Ping checks plain reachability.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/ping", nil, nil, nil)
}

func (c *Client) Programs(ctx context.Context) ([]models.Program, error) {
	var rows []ProgramDTO
	if err := c.do(ctx, http.MethodGet, "/programs", nil, nil, &rows); err != nil {
		return nil, err
	}
	out := make([]models.Program, 0, len(rows))
	for _, r := range rows {
		out = append(out, ProgramFromDTO(r))
	}
	return out, nil
}

func (c *Client) Affiliates(ctx context.Context) ([]models.Affiliate, error) {
	var rows []AffiliateDTO
	if err := c.do(ctx, http.MethodGet, "/affiliates", nil, nil, &rows); err != nil {
		return nil, err
	}
	out := make([]models.Affiliate, 0, len(rows))
	for _, r := range rows {
		out = append(out, AffiliateFromDTO(r))
	}
	return out, nil
}

// Reports fetches every report between from and to, both inclusive.
// Rows the client cannot interpret are logged and skipped.
func (c *Client) Reports(ctx context.Context, from, to time.Time) (map[utils.Key]models.Report, error) {
	q := url.Values{}
	q.Set("from", utils.DateKey(from))
	q.Set("to", utils.DateKey(to))

	var rows []ReportRow
	if err := c.do(ctx, http.MethodGet, "/reports", q, nil, &rows); err != nil {
		return nil, err
	}
	out := make(map[utils.Key]models.Report, len(rows))
	for _, row := range rows {
		key, r, err := ReportFromRow(row)
		if err != nil {
			logger.Warn("Skipping malformed report row", "filial", row.FilialID, "programa", row.ProgramaID, "fecha", row.Fecha, "error", err)
			continue
		}
		out[key] = r
	}
	return out, nil
}

// PutReport replaces the report for key and returns the confirmed row.
func (c *Client) PutReport(ctx context.Context, key utils.Key, r models.Report) (models.Report, error) {
	date, err := key.Date()
	if err != nil {
		return models.Report{}, fmt.Errorf("invalid key %s: %w", key, err)
	}
	path := "/reports/" + url.PathEscape(key.AffiliateID) + "/" + url.PathEscape(key.ProgramID) + "/" + utils.DateKey(date)

	var row ReportRow
	if err := c.do(ctx, http.MethodPut, path, nil, ReportToPatch(r), &row); err != nil {
		return models.Report{}, err
	}
	_, confirmed, err := ReportFromRow(row)
	if err != nil {
		return models.Report{}, fmt.Errorf("decoding confirmed report: %w", err)
	}
	return confirmed, nil
}

// Notes fetches the notes of every affiliate for the week starting weekStart.
func (c *Client) Notes(ctx context.Context, weekStart string) ([]models.Note, error) {
	q := url.Values{}
	q.Set("week", weekStart)
	var rows []NoteRow
	if err := c.do(ctx, http.MethodGet, "/notes", q, nil, &rows); err != nil {
		return nil, err
	}
	out := make([]models.Note, 0, len(rows))
	for _, r := range rows {
		out = append(out, NoteFromRow(r))
	}
	return out, nil
}

// PutNote replaces the note of one affiliate for one week.
func (c *Client) PutNote(ctx context.Context, n models.Note) (models.Note, error) {
	path := "/notes/" + url.PathEscape(n.AffiliateID) + "/" + url.PathEscape(n.WeekStart)
	var row NoteRow
	if err := c.do(ctx, http.MethodPut, path, nil, NotePatch{Content: n.Content}, &row); err != nil {
		return models.Note{}, err
	}
	return NoteFromRow(row), nil
}

func (c *Client) CreateProgram(ctx context.Context, p models.Program) (models.Program, error) {
	var row ProgramDTO
	if err := c.do(ctx, http.MethodPost, "/programs", nil, ProgramToDTO(p), &row); err != nil {
		return models.Program{}, err
	}
	return ProgramFromDTO(row), nil
}

func (c *Client) UpdateProgram(ctx context.Context, p models.Program) (models.Program, error) {
	if p.ID == "" {
		return models.Program{}, errors.New("program id is required")
	}
	var row ProgramDTO
	if err := c.do(ctx, http.MethodPut, "/programs/"+url.PathEscape(p.ID), nil, ProgramToDTO(p), &row); err != nil {
		return models.Program{}, err
	}
	return ProgramFromDTO(row), nil
}

func (c *Client) DeleteProgram(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/programs/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) CreateAffiliate(ctx context.Context, a models.Affiliate) (models.Affiliate, error) {
	var row AffiliateDTO
	if err := c.do(ctx, http.MethodPost, "/affiliates", nil, AffiliateToDTO(a), &row); err != nil {
		return models.Affiliate{}, err
	}
	return AffiliateFromDTO(row), nil
}

func (c *Client) UpdateAffiliate(ctx context.Context, a models.Affiliate) (models.Affiliate, error) {
	if a.ID == "" {
		return models.Affiliate{}, errors.New("affiliate id is required")
	}
	var row AffiliateDTO
	if err := c.do(ctx, http.MethodPut, "/affiliates/"+url.PathEscape(a.ID), nil, AffiliateToDTO(a), &row); err != nil {
		return models.Affiliate{}, err
	}
	return AffiliateFromDTO(row), nil
}

func (c *Client) DeleteAffiliate(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/affiliates/"+url.PathEscape(id), nil, nil, nil)
}

var _ Backend = (*Client)(nil)
