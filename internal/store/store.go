// Package store is the reporting store: it resolves every
// (affiliate, program, date) cell by overlaying local optimistic writes on
// the state last confirmed by the backend.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/gateway"
	"github.com/julianstephens/filialwatch/internal/logger"
	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/targets"
	"github.com/julianstephens/filialwatch/internal/utils"
)

// Access decides whether the current session may write.
type Access interface {
	CanWrite() bool
}

// Persistence keeps pending writes across restarts. storage.SQLiteStore
// satisfies it.
type Persistence interface {
	SavePendingReport(key utils.Key, r models.Report) error
	DeletePendingReport(key utils.Key) error
	GetPendingReports() (map[utils.Key]models.Report, error)
	SavePendingNote(models.Note) error
	DeletePendingNote(key utils.NoteKey) error
	GetPendingNotes() ([]models.Note, error)
}

// ConnectionSink receives connectivity evidence from fetches.
type ConnectionSink interface {
	MarkOnline(health string)
	MarkOffline(err error)
}

// Status is a snapshot of the store's activity flags.
type Status struct {
	Loading      bool
	Syncing      bool
	SavingReport bool
	SavingNote   bool
	Pending      int
	LastRefresh  time.Time
	LastError    string
}

// Store holds programs, affiliates, reports and notes for the visible range.
// All methods are safe for concurrent use; the lock is never held across a
// gateway call.
type Store struct {
	gw      gateway.Gateway
	access  Access
	persist Persistence
	conn    ConnectionSink

	mu           sync.RWMutex
	programs     []models.Program
	affiliates   []models.Affiliate
	confirmed    map[utils.Key]models.Report
	pending      map[utils.Key]PendingReport
	confirmedBy  map[utils.Key]uint64
	notes        map[utils.NoteKey]models.Note
	pendingNotes map[utils.NoteKey]Pending[models.Note]
	noteBy       map[utils.NoteKey]uint64
	from, to     time.Time

	loading      bool
	syncing      bool
	savingReport int
	savingNote   int
	lastRefresh  time.Time
	lastError    string

	writeSeq   uint64
	refreshSeq uint64
}

// Option configures a Store.
type Option func(*Store)

// WithAccess gates writes behind a.
func WithAccess(a Access) Option {
	return func(s *Store) { s.access = a }
}

// WithPersistence stores pending writes in p.
func WithPersistence(p Persistence) Option {
	return func(s *Store) { s.persist = p }
}

// WithConnection reports fetch outcomes to c.
func WithConnection(c ConnectionSink) Option {
	return func(s *Store) { s.conn = c }
}

// New builds a store over gw. The visible range starts as the current
// business week.
func New(gw gateway.Gateway, opts ...Option) *Store {
	week := utils.WeekOf(utils.LocalNow())
	s := &Store{
		gw:           gw,
		confirmed:    make(map[utils.Key]models.Report),
		pending:      make(map[utils.Key]PendingReport),
		confirmedBy:  make(map[utils.Key]uint64),
		notes:        make(map[utils.NoteKey]models.Note),
		pendingNotes: make(map[utils.NoteKey]Pending[models.Note]),
		noteBy:       make(map[utils.NoteKey]uint64),
		from:         week.Inicio,
		to:           week.Fin,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize seeds the catalog, re-overlays persisted pending writes and
// starts a background Refresh. The channel receives the refresh outcome
// and is then closed.
func (s *Store) Initialize(ctx context.Context, programs []models.Program, affiliates []models.Affiliate) <-chan bool {
	s.mu.Lock()
	if programs != nil {
		s.programs = append([]models.Program(nil), programs...)
	}
	if affiliates != nil {
		s.affiliates = append([]models.Affiliate(nil), affiliates...)
	}
	s.loading = true
	s.mu.Unlock()

	s.restorePending()

	done := make(chan bool, 1)
	go func() {
		defer close(done)
		done <- s.Refresh(ctx)
	}()
	return done
}

func (s *Store) restorePending() {
	if s.persist == nil {
		return
	}
	reports, err := s.persist.GetPendingReports()
	if err != nil {
		logger.Warn("Failed to load pending reports", "error", err)
	}
	notes, err := s.persist.GetPendingNotes()
	if err != nil {
		logger.Warn("Failed to load pending notes", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, r := range reports {
		if _, ok := s.pending[k]; ok {
			continue
		}
		s.writeSeq++
		r.Sync = models.SyncPending
		s.pending[k] = PendingReport{Value: r, Seq: s.writeSeq}
	}
	for _, n := range notes {
		k := utils.NoteKey{AffiliateID: n.AffiliateID, WeekStart: n.WeekStart}
		if _, ok := s.pendingNotes[k]; ok {
			continue
		}
		s.writeSeq++
		n.Sync = models.SyncPending
		s.pendingNotes[k] = Pending[models.Note]{Value: n, Seq: s.writeSeq}
	}
	if len(reports)+len(notes) > 0 {
		logger.Info("Restored unsynced local edits", "reports", len(reports), "notes", len(notes))
	}
}

// SetRange changes the visible range. It does not fetch; call Refresh.
func (s *Store) SetRange(from, to time.Time) {
	from, to = utils.StartOfDay(from), utils.StartOfDay(to)
	if to.Before(from) {
		from, to = to, from
	}
	s.mu.Lock()
	s.from, s.to = from, to
	s.mu.Unlock()
}

// Range returns the visible range.
func (s *Store) Range() (time.Time, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.from, s.to
}

// Programs returns the catalog sorted by schedule then name.
func (s *Store) Programs() []models.Program {
	s.mu.RLock()
	out := append([]models.Program(nil), s.programs...)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Horario != out[j].Horario {
			return out[i].Horario < out[j].Horario
		}
		return out[i].Nombre < out[j].Nombre
	})
	return out
}

// Affiliates returns the catalog sorted by name.
func (s *Store) Affiliates() []models.Affiliate {
	s.mu.RLock()
	out := append([]models.Affiliate(nil), s.affiliates...)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Nombre < out[j].Nombre })
	return out
}

// Program finds a program by id, or by name case-insensitively.
func (s *Store) Program(idOrName string) (models.Program, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.programs {
		if p.ID == idOrName {
			return p, true
		}
	}
	for _, p := range s.programs {
		if strings.EqualFold(p.Nombre, idOrName) {
			return p, true
		}
	}
	return models.Program{}, false
}

// Affiliate finds an affiliate by id, or by name case-insensitively.
func (s *Store) Affiliate(idOrName string) (models.Affiliate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.affiliates {
		if a.ID == idOrName {
			return a, true
		}
	}
	for _, a := range s.affiliates {
		if strings.EqualFold(a.Nombre, idOrName) {
			return a, true
		}
	}
	return models.Affiliate{}, false
}

// GetReportState resolves one cell: pending overlay, then confirmed, then
// the default pendiente report. It never fails.
func (s *Store) GetReportState(affiliateID, programID string, date time.Time) models.Report {
	key := utils.CacheKey(affiliateID, programID, date)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveLocked(key)
}

func (s *Store) resolveLocked(key utils.Key) models.Report {
	if p, ok := s.pending[key]; ok {
		return p.Value
	}
	if r, ok := s.confirmed[key]; ok {
		return r
	}
	return models.DefaultReport()
}

// GetNote returns the note of affiliateID for the week of the visible range.
func (s *Store) GetNote(affiliateID string) string {
	s.mu.RLock()
	weekStart := utils.DateKey(utils.WeekOf(s.from).Inicio)
	s.mu.RUnlock()
	return s.GetNoteFor(affiliateID, weekStart)
}

// GetNoteFor returns the note of affiliateID for the week starting weekStart.
func (s *Store) GetNoteFor(affiliateID, weekStart string) string {
	key := utils.NoteKey{AffiliateID: affiliateID, WeekStart: weekStart}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.pendingNotes[key]; ok {
		return p.Value.Content
	}
	return s.notes[key].Content
}

// Status returns the activity flags.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Loading:      s.loading,
		Syncing:      s.syncing,
		SavingReport: s.savingReport > 0,
		SavingNote:   s.savingNote > 0,
		Pending:      len(s.pending) + len(s.pendingNotes),
		LastRefresh:  s.lastRefresh,
		LastError:    s.lastError,
	}
}

// PendingCount returns how many local writes are not yet confirmed.
func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending) + len(s.pendingNotes)
}

// PendingReports lists the unconfirmed report cells, oldest write first.
func (s *Store) PendingReports() []utils.Key {
	s.mu.RLock()
	keys := make([]utils.Key, 0, len(s.pending))
	seqs := make(map[utils.Key]uint64, len(s.pending))
	for k, p := range s.pending {
		keys = append(keys, k)
		seqs[k] = p.Seq
	}
	s.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return seqs[keys[i]] < seqs[keys[j]] })
	return keys
}

func (s *Store) checkWrite() error {
	if s.access != nil && !s.access.CanWrite() {
		return fmt.Errorf("%w: log in to make changes", apperrors.ErrForbidden)
	}
	return nil
}

// UpsertReport sanitizes and validates patch, applies it optimistically and
// persists it. The patch replaces the whole report. On success the
// confirmed report is returned; when a newer write to the same key was
// issued meanwhile, that newer write keeps the cell. On failure the entry
// stays pending and the returned report is that pending entry.
func (s *Store) UpsertReport(ctx context.Context, affiliateID, programID string, date time.Time, patch models.Report) (models.Report, error) {
	if err := s.checkWrite(); err != nil {
		return models.Report{}, err
	}
	if affiliateID == "" || programID == "" {
		return models.Report{}, apperrors.Validationf("affiliate and program are required")
	}
	if patch.Target != "" {
		patch.Target = targets.Canonicalize(patch.Target)
	}
	r := patch.Sanitize()
	if err := r.Validate(); err != nil {
		return models.Report{}, apperrors.Validationf("%v", err)
	}

	key := utils.CacheKey(affiliateID, programID, date)
	r.Sync = models.SyncPending

	s.mu.Lock()
	s.writeSeq++
	seq := s.writeSeq
	s.pending[key] = PendingReport{Value: r, Seq: seq, InFlight: true}
	s.savingReport++
	s.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.SavePendingReport(key, r); err != nil {
			logger.Warn("Failed to persist pending report", "key", key.String(), "error", err)
		}
	}

	confirmed, err := s.gw.PutReport(ctx, key, r)

	s.mu.Lock()
	s.savingReport--
	current, ok := s.pending[key]
	latest := ok && current.Seq == seq
	if err != nil {
		if latest {
			current.InFlight = false
			s.pending[key] = current
		}
		s.mu.Unlock()
		logger.Error("Report write failed", "key", key.String(), "estado", r.Estado, "error", err)
		return r, fmt.Errorf("%w: %w", apperrors.ErrWriteFailed, err)
	}

	confirmed.Sync = models.SyncSynced
	if latest {
		delete(s.pending, key)
		s.confirmed[key] = confirmed
		s.confirmedBy[key] = seq
	}
	s.mu.Unlock()

	if latest && s.persist != nil {
		if err := s.persist.DeletePendingReport(key); err != nil {
			logger.Warn("Failed to clear pending report", "key", key.String(), "error", err)
		}
	}
	if !latest {
		logger.Debug("Superseded report write confirmed", "key", key.String(), "seq", seq)
	}
	return confirmed, nil
}

// UpsertNote replaces the note of affiliateID for the week containing
// weekStart, with the same optimistic pattern as UpsertReport.
func (s *Store) UpsertNote(ctx context.Context, affiliateID, weekStart, content string) error {
	if err := s.checkWrite(); err != nil {
		return err
	}
	if affiliateID == "" {
		return apperrors.Validationf("affiliate is required")
	}
	date, err := utils.ParseLocalDate(weekStart)
	if err != nil {
		return apperrors.Validationf("%v", err)
	}
	key := utils.NoteKeyFor(affiliateID, date)
	note := models.Note{AffiliateID: affiliateID, WeekStart: key.WeekStart, Content: content, Sync: models.SyncPending}

	s.mu.Lock()
	s.writeSeq++
	seq := s.writeSeq
	s.pendingNotes[key] = Pending[models.Note]{Value: note, Seq: seq, InFlight: true}
	s.savingNote++
	s.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.SavePendingNote(note); err != nil {
			logger.Warn("Failed to persist pending note", "affiliate", affiliateID, "error", err)
		}
	}

	confirmed, err := s.gw.PutNote(ctx, note)

	s.mu.Lock()
	s.savingNote--
	current, ok := s.pendingNotes[key]
	latest := ok && current.Seq == seq
	if err != nil {
		if latest {
			current.InFlight = false
			s.pendingNotes[key] = current
		}
		s.mu.Unlock()
		logger.Error("Note write failed", "affiliate", affiliateID, "week", key.WeekStart, "error", err)
		return fmt.Errorf("%w: %w", apperrors.ErrWriteFailed, err)
	}
	if latest {
		confirmed.Sync = models.SyncSynced
		delete(s.pendingNotes, key)
		s.notes[key] = confirmed
		s.noteBy[key] = seq
	}
	s.mu.Unlock()

	if latest && s.persist != nil {
		if err := s.persist.DeletePendingNote(key); err != nil {
			logger.Warn("Failed to clear pending note", "affiliate", affiliateID, "error", err)
		}
	}
	return nil
}

// RetryPending re-sends every failed pending write in call order. It stops
// at the first failure and returns how many writes were confirmed.
func (s *Store) RetryPending(ctx context.Context) (int, error) {
	type job struct {
		seq    uint64
		report *utils.Key
		note   *utils.NoteKey
	}
	var jobs []job
	s.mu.RLock()
	for k, p := range s.pending {
		if !p.InFlight {
			k := k
			jobs = append(jobs, job{seq: p.Seq, report: &k})
		}
	}
	for k, p := range s.pendingNotes {
		if !p.InFlight {
			k := k
			jobs = append(jobs, job{seq: p.Seq, note: &k})
		}
	}
	s.mu.RUnlock()
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].seq < jobs[j].seq })

	sent := 0
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if j.report != nil {
			s.mu.RLock()
			p, ok := s.pending[*j.report]
			s.mu.RUnlock()
			if !ok || p.InFlight {
				continue
			}
			date, err := j.report.Date()
			if err != nil {
				continue
			}
			if _, err := s.UpsertReport(ctx, j.report.AffiliateID, j.report.ProgramID, date, p.Value); err != nil {
				return sent, err
			}
		} else {
			s.mu.RLock()
			p, ok := s.pendingNotes[*j.note]
			s.mu.RUnlock()
			if !ok || p.InFlight {
				continue
			}
			if err := s.UpsertNote(ctx, j.note.AffiliateID, j.note.WeekStart, p.Value.Content); err != nil {
				return sent, err
			}
		}
		sent++
	}
	return sent, nil
}

type fetchResult struct {
	programs   []models.Program
	affiliates []models.Affiliate
	reports    map[utils.Key]models.Report
	notes      map[utils.NoteKey]models.Note
}

func (s *Store) fetch(ctx context.Context, from, to time.Time) (fetchResult, error) {
	var res fetchResult
	var err error
	if res.programs, err = s.gw.Programs(ctx); err != nil {
		return res, fmt.Errorf("fetching programs: %w", err)
	}
	if res.affiliates, err = s.gw.Affiliates(ctx); err != nil {
		return res, fmt.Errorf("fetching affiliates: %w", err)
	}
	if res.reports, err = s.gw.Reports(ctx, from, to); err != nil {
		return res, fmt.Errorf("fetching reports: %w", err)
	}
	weekStart := utils.DateKey(utils.WeekOf(from).Inicio)
	notes, err := s.gw.Notes(ctx, weekStart)
	if err != nil {
		return res, fmt.Errorf("fetching notes: %w", err)
	}
	res.notes = make(map[utils.NoteKey]models.Note, len(notes))
	for _, n := range notes {
		res.notes[utils.NoteKey{AffiliateID: n.AffiliateID, WeekStart: n.WeekStart}] = n
	}
	return res, nil
}

// Refresh reloads the catalog and the reports and notes of the visible
// range. A completion older than the latest started refresh is discarded.
// On failure every cached value is kept and the connection is marked
// offline.
func (s *Store) Refresh(ctx context.Context) bool {
	s.mu.Lock()
	s.refreshSeq++
	seq := s.refreshSeq
	startWrite := s.writeSeq
	s.syncing = true
	from, to := s.from, s.to
	s.mu.Unlock()

	res, err := s.fetch(ctx, from, to)

	s.mu.Lock()
	if seq != s.refreshSeq {
		s.mu.Unlock()
		logger.Debug("Discarding stale refresh", "seq", seq)
		return false
	}
	s.syncing = false
	s.loading = false
	if err != nil {
		s.lastError = err.Error()
		s.mu.Unlock()
		logger.Warn("Refresh failed, keeping cached data", "error", err)
		if s.conn != nil {
			s.conn.MarkOffline(err)
		}
		return false
	}

	s.programs = res.programs
	s.affiliates = res.affiliates

	confirmed, pending, dropped := Reconcile(s.confirmed, s.pending, res.reports, from, to)
	// Writes confirmed while the fetch was in flight are newer than it.
	for k, by := range s.confirmedBy {
		if by <= startWrite {
			delete(s.confirmedBy, k)
			continue
		}
		if r, ok := s.confirmed[k]; ok {
			confirmed[k] = r
		}
	}
	s.confirmed, s.pending = confirmed, pending

	weekStart := utils.DateKey(utils.WeekOf(from).Inicio)
	inWeek := func(k utils.NoteKey) bool { return k.WeekStart == weekStart }
	notes, pendingNotes, droppedNotes := reconcile(s.notes, s.pendingNotes, res.notes, inWeek)
	for k, by := range s.noteBy {
		if by <= startWrite {
			delete(s.noteBy, k)
			continue
		}
		if n, ok := s.notes[k]; ok {
			notes[k] = n
		}
	}
	s.notes, s.pendingNotes = notes, pendingNotes

	s.lastRefresh = time.Now()
	s.lastError = ""
	s.mu.Unlock()

	if s.persist != nil {
		for _, k := range dropped {
			if err := s.persist.DeletePendingReport(k); err != nil {
				logger.Warn("Failed to clear pending report", "key", k.String(), "error", err)
			}
		}
		for _, k := range droppedNotes {
			if err := s.persist.DeletePendingNote(k); err != nil {
				logger.Warn("Failed to clear pending note", "affiliate", k.AffiliateID, "error", err)
			}
		}
	}
	if len(dropped)+len(droppedNotes) > 0 {
		logger.Info("Backend values replaced unsynced local edits", "reports", len(dropped), "notes", len(droppedNotes))
	}
	if s.conn != nil {
		s.conn.MarkOnline("healthy")
	}
	logger.Debug("Refresh complete", "reports", len(res.reports), "from", utils.DateKey(from), "to", utils.DateKey(to))
	return true
}

// ReportsInRange fetches the reports between from and to, merges them into
// the confirmed state and returns the resolved cells of that range,
// pending overlay included. It shares the refresh sequence with Refresh:
// it displaces refreshes started before it, and its rows are not merged
// when a newer refresh started while it was fetching.
func (s *Store) ReportsInRange(ctx context.Context, from, to time.Time) (map[utils.Key]models.Report, error) {
	from, to = utils.StartOfDay(from), utils.StartOfDay(to)
	s.mu.Lock()
	s.refreshSeq++
	seq := s.refreshSeq
	startWrite := s.writeSeq
	s.mu.Unlock()

	fetched, err := s.gw.Reports(ctx, from, to)
	if err != nil {
		s.mu.Lock()
		if seq == s.refreshSeq {
			s.syncing = false
		}
		s.mu.Unlock()
		if s.conn != nil {
			s.conn.MarkOffline(err)
		}
		return nil, fmt.Errorf("fetching reports: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	inRange := KeyInRange(from, to)

	if seq != s.refreshSeq {
		logger.Debug("Range fetch overtaken by a newer refresh", "seq", seq)
		out := make(map[utils.Key]models.Report)
		for k, r := range fetched {
			if inRange(k) {
				out[k] = r
			}
		}
		for k, by := range s.confirmedBy {
			if r, ok := s.confirmed[k]; ok && by > startWrite && inRange(k) {
				out[k] = r
			}
		}
		for k, p := range s.pending {
			if inRange(k) {
				out[k] = p.Value
			}
		}
		return out, nil
	}
	// Refreshes displaced by this fetch will not clear the flag.
	s.syncing = false

	confirmed, pending, _ := Reconcile(s.confirmed, s.pending, fetched, from, to)
	for k, by := range s.confirmedBy {
		if by > startWrite {
			if r, ok := s.confirmed[k]; ok {
				confirmed[k] = r
			}
		}
	}
	// Failed local edits stay visible here; only Refresh retires them.
	for k, p := range s.pending {
		if _, ok := pending[k]; !ok {
			pending[k] = p
		}
	}
	s.confirmed, s.pending = confirmed, pending

	out := make(map[utils.Key]models.Report)
	for k, r := range s.confirmed {
		if inRange(k) {
			out[k] = r
		}
	}
	for k, p := range s.pending {
		if inRange(k) {
			out[k] = p.Value
		}
	}
	return out, nil
}
