// Package directory caches the technician (operator) list. It resolves
// technician names for filters and tells the sender policy which senders
// are operators rather than clients.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/chatwoot/ticketsync/internal/api"
)

// DefaultTTL is how long a fetched technician list is served from cache.
const DefaultTTL = 5 * time.Minute

const techniciansKey = "technicians"

// Source fetches the technician list. *api.Client satisfies it.
type Source interface {
	ListTechnicians(ctx context.Context) ([]api.Technician, error)
}

// Directory is an explicitly constructed, injectable technician store.
type Directory struct {
	src   Source
	cache *gocache.Cache

	loadMu    sync.Mutex
	operators atomic.Pointer[map[int]string]
}

// New returns a Directory whose list expires after ttl.
func New(src Source, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	d := &Directory{src: src, cache: gocache.New(ttl, 2*ttl)}
	empty := map[int]string{}
	d.operators.Store(&empty)
	return d
}

// Technicians returns the cached list, fetching it when missing or expired.
func (d *Directory) Technicians(ctx context.Context) ([]api.Technician, error) {
	if v, ok := d.cache.Get(techniciansKey); ok {
		return v.([]api.Technician), nil
	}
	d.loadMu.Lock()
	defer d.loadMu.Unlock()
	if v, ok := d.cache.Get(techniciansKey); ok {
		return v.([]api.Technician), nil
	}
	return d.loadLocked(ctx)
}

// Refresh refetches the list regardless of the cache.
func (d *Directory) Refresh(ctx context.Context) error {
	d.loadMu.Lock()
	defer d.loadMu.Unlock()
	_, err := d.loadLocked(ctx)
	return err
}

func (d *Directory) loadLocked(ctx context.Context) ([]api.Technician, error) {
	techs, err := d.src.ListTechnicians(ctx)
	if err != nil {
		return nil, fmt.Errorf("list technicians: %w", err)
	}
	ops := make(map[int]string, len(techs))
	for _, t := range techs {
		ops[t.ID] = t.Name
	}
	d.operators.Store(&ops)
	d.cache.SetDefault(techniciansKey, techs)
	slog.Debug("technician directory loaded", "count", len(techs))
	return techs, nil
}

// Invalidate drops the cached list; the operator set stays until the next load.
func (d *Directory) Invalidate() {
	d.cache.Delete(techniciansKey)
}

// IsOperator reports whether id belongs to a known technician. It never
// blocks on the network and answers from the last loaded list, even if
// that list has expired.
func (d *Directory) IsOperator(id int) bool {
	_, ok := (*d.operators.Load())[id]
	return ok
}

// Name returns the technician's display name from the last loaded list.
func (d *Directory) Name(id int) (string, bool) {
	name, ok := (*d.operators.Load())[id]
	return name, ok
}

// Resolve turns a technician reference into an id. Numeric references are
// returned as is; names are matched fuzzily against the directory.
func (d *Directory) Resolve(ctx context.Context, ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.Atoi(ref); err == nil && id > 0 {
		return id, nil
	}
	techs, err := d.Technicians(ctx)
	if err != nil {
		return 0, err
	}
	t, err := match(ref, techs)
	if err != nil {
		return 0, err
	}
	return t.ID, nil
}

// ResolveAll resolves every reference, failing on the first error.
func (d *Directory) ResolveAll(ctx context.Context, refs []string) ([]int, error) {
	ids := make([]int, 0, len(refs))
	for _, ref := range refs {
		id, err := d.Resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
