package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/julianstephens/filialwatch/internal/gateway"
	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/utils"
)

var errBackendDown = errors.New("connection refused")

// fakeGateway is an in-memory backend. fail makes every call fail and
// failPuts only the writes. With blockPuts (blockFetch) each PutReport
// (Programs) call parks on its own channel, appended to putGates
// (fetchGates), until the test closes it. blockReports parks Reports after
// the rows have been read, on reportGates.
type fakeGateway struct {
	mu         sync.Mutex
	programs   []models.Program
	affiliates []models.Affiliate
	reports    map[utils.Key]models.Report
	notes      map[utils.NoteKey]models.Note
	fail       bool
	failPuts   bool
	blockPuts  bool
	blockFetch bool
	putGates   []chan struct{}
	fetchGates []chan struct{}

	blockReports bool
	reportGates  []chan struct{}

	puts       []models.Report
	putCalls   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		programs:   []models.Program{{ID: "noticias", Nombre: "NOTICIAS", Horario: "05:00", DiasSemana: models.DiasDiario, IsActivo: true}},
		affiliates: []models.Affiliate{{ID: "lima", Nombre: "LIMA", IsActivo: true}},
		reports:    make(map[utils.Key]models.Report),
		notes:      make(map[utils.NoteKey]models.Note),
	}
}

func (f *fakeGateway) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *fakeGateway) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errBackendDown
	}
	return nil
}

func (f *fakeGateway) Health(ctx context.Context) (gateway.HealthResponse, error) {
	if err := f.err(); err != nil {
		return gateway.HealthResponse{}, err
	}
	return gateway.HealthResponse{Status: "healthy"}, nil
}

func (f *fakeGateway) Ping(ctx context.Context) error { return f.err() }

func (f *fakeGateway) park(block bool, gates *[]chan struct{}) chan struct{} {
	if !block {
		return nil
	}
	ch := make(chan struct{})
	*gates = append(*gates, ch)
	return ch
}

func (f *fakeGateway) gateCount(gates *[]chan struct{}) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(*gates)
}

func (f *fakeGateway) release(gates *[]chan struct{}, i int) {
	f.mu.Lock()
	ch := (*gates)[i]
	f.mu.Unlock()
	close(ch)
}

func (f *fakeGateway) Programs(ctx context.Context) ([]models.Program, error) {
	f.mu.Lock()
	gate := f.park(f.blockFetch, &f.fetchGates)
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Program(nil), f.programs...), nil
}

func (f *fakeGateway) Affiliates(ctx context.Context) ([]models.Affiliate, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Affiliate(nil), f.affiliates...), nil
}

func (f *fakeGateway) Reports(ctx context.Context, from, to time.Time) (map[utils.Key]models.Report, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	inRange := KeyInRange(from, to)
	out := make(map[utils.Key]models.Report)
	for k, r := range f.reports {
		if inRange(k) {
			r.Sync = models.SyncSynced
			out[k] = r
		}
	}
	gate := f.park(f.blockReports, &f.reportGates)
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return out, nil
}

func (f *fakeGateway) PutReport(ctx context.Context, key utils.Key, r models.Report) (models.Report, error) {
	f.mu.Lock()
	gate := f.park(f.blockPuts, &f.putGates)
	f.putCalls++
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail || f.failPuts {
		return models.Report{}, errBackendDown
	}
	r.Sync = ""
	f.reports[key] = r
	f.puts = append(f.puts, r)
	return r, nil
}

func (f *fakeGateway) Notes(ctx context.Context, weekStart string) ([]models.Note, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Note
	for k, n := range f.notes {
		if k.WeekStart == weekStart {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeGateway) PutNote(ctx context.Context, n models.Note) (models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail || f.failPuts {
		return models.Note{}, errBackendDown
	}
	n.Sync = ""
	f.notes[utils.NoteKey{AffiliateID: n.AffiliateID, WeekStart: n.WeekStart}] = n
	return n, nil
}

type fakeAccess struct{ write bool }

func (a fakeAccess) CanWrite() bool { return a.write }

type fakeConn struct {
	mu      sync.Mutex
	online  bool
	offline int
}

func (c *fakeConn) MarkOnline(string) {
	c.mu.Lock()
	c.online = true
	c.mu.Unlock()
}

func (c *fakeConn) MarkOffline(error) {
	c.mu.Lock()
	c.online = false
	c.offline++
	c.mu.Unlock()
}
