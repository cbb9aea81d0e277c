package store

import (
	"time"

	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/utils"
)

// Pending is a local write the backend has not confirmed. InFlight is true
// while its request is outstanding; Seq orders writes to the same key by
// call order.
type Pending[V any] struct {
	Value    V
	Seq      uint64
	InFlight bool
}

// PendingReport is the pending overlay entry of one report cell.
type PendingReport = Pending[models.Report]

// reconcile merges a successful fetch covering inScope keys.
//   - confirmed entries in scope are replaced by fetched (absent rows are removed)
//   - confirmed entries out of scope are kept
//   - in-flight pending entries survive
//   - failed pending entries survive unless fetched holds a row for the key
//
// It returns new maps and the pending keys that were dropped.
func reconcile[K comparable, V any](confirmed map[K]V, pending map[K]Pending[V], fetched map[K]V, inScope func(K) bool) (map[K]V, map[K]Pending[V], []K) {
	nextConfirmed := make(map[K]V, len(confirmed)+len(fetched))
	for k, v := range confirmed {
		if !inScope(k) {
			nextConfirmed[k] = v
		}
	}
	for k, v := range fetched {
		nextConfirmed[k] = v
	}

	nextPending := make(map[K]Pending[V], len(pending))
	var dropped []K
	for k, p := range pending {
		if !p.InFlight {
			if _, ok := fetched[k]; ok {
				dropped = append(dropped, k)
				continue
			}
		}
		nextPending[k] = p
	}
	return nextConfirmed, nextPending, dropped
}

// Reconcile decides what survives a successful fetch of the reports between
// from and to (calendar days in Lima, both inclusive).
func Reconcile(confirmed map[utils.Key]models.Report, pending map[utils.Key]PendingReport, fetched map[utils.Key]models.Report, from, to time.Time) (map[utils.Key]models.Report, map[utils.Key]PendingReport, []utils.Key) {
	return reconcile(confirmed, pending, fetched, KeyInRange(from, to))
}

// KeyInRange returns a predicate matching keys whose day lies in [from, to].
// Keys with an unreadable day are never in range.
func KeyInRange(from, to time.Time) func(utils.Key) bool {
	lo := utils.StartOfDay(from)
	hi := utils.StartOfDay(to)
	return func(k utils.Key) bool {
		d, err := k.Date()
		if err != nil {
			return false
		}
		return !d.Before(lo) && !d.After(hi)
	}
}
