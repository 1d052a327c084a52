package workbook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"

	saherrors "github.com/ergcontrols/sahabot/internal/errors"
)

// fileState is the on-disk layout: one JSON document standing in for the
// shared workbook, one array per tab plus the ticket counter.
type fileState struct {
	Sites          []Row `json:"sites"`
	Support        []Row `json:"support"`
	Hardware       []Row `json:"hardware"`
	Implementation []Row `json:"implementation"`
	Stock          []Row `json:"stock"`
	Feedback       []Row `json:"feedback"`
	NextTicket     int   `json:"next_ticket"`
}

// FileStore persists the workbook as a single JSON file. Writes are
// atomic (write-then-rename) and guarded by a sibling flock so a
// concurrently running reporting job never sees a torn file. Every call
// reloads from disk: the file is the truth, not process memory.
type FileStore struct {
	path        string
	lockTimeout time.Duration
	lockRetry   time.Duration
	mu          sync.Mutex
}

// FileOptions tunes lock acquisition. Zero values fall back to 5s / 100ms.
type FileOptions struct {
	LockTimeout time.Duration
	LockRetry   time.Duration
}

// NewFileStore opens or creates the workbook file at path.
func NewFileStore(path string, opts FileOptions) (*FileStore, error) {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 5 * time.Second
	}
	if opts.LockRetry <= 0 {
		opts.LockRetry = 100 * time.Millisecond
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workbook directory: %w", err)
	}

	s := &FileStore{
		path:        path,
		lockTimeout: opts.LockTimeout,
		lockRetry:   opts.LockRetry,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.transact(context.Background(), func(st *fileState) (bool, error) {
			return true, nil
		}); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// transact runs fn under the in-process mutex and the file lock, loading
// the state first and saving it back when fn reports dirty.
func (s *FileStore) transact(ctx context.Context, fn func(*fileState) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fl := flock.New(s.path + ".lock")
	if err := s.acquire(ctx, fl); err != nil {
		return err
	}
	defer fl.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}

	dirty, err := fn(state)
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}

	return s.save(state)
}

func (s *FileStore) acquire(ctx context.Context, fl *flock.Flock) error {
	deadline := time.Now().Add(s.lockTimeout)
	for {
		select {
		case <-ctx.Done():
			return saherrors.Wrap(ctx.Err(), "workbook lock acquisition cancelled")
		default:
		}

		locked, err := fl.TryLock()
		if err != nil {
			return fmt.Errorf("failed to attempt workbook lock: %w", err)
		}
		if locked {
			return nil
		}
		if time.Now().After(deadline) {
			return saherrors.Transient(fmt.Sprintf("workbook %s is locked by another process", s.path))
		}
		time.Sleep(s.lockRetry)
	}
}

func (s *FileStore) load() (*fileState, error) {
	state := &fileState{}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	if len(data) == 0 {
		return state, nil
	}

	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to parse workbook %s: %w", s.path, err)
	}
	return state, nil
}

func (s *FileStore) save(state *fileState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode workbook: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

func filterBySite(rows []Row, siteID string) []Row {
	var out []Row
	for _, r := range rows {
		if strings.EqualFold(r["site_id"], siteID) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// ReadSites returns every row of the sites tab.
func (s *FileStore) ReadSites(ctx context.Context) ([]Row, error) {
	var out []Row
	err := s.transact(ctx, func(st *fileState) (bool, error) {
		out = cloneRows(st.Sites)
		return false, nil
	})
	return out, err
}

// CreateSite appends a new site. Site IDs are unique.
func (s *FileStore) CreateSite(ctx context.Context, row Row) error {
	return s.transact(ctx, func(st *fileState) (bool, error) {
		id := row["site_id"]
		for _, existing := range st.Sites {
			if strings.EqualFold(existing["site_id"], id) {
				return false, saherrors.InvalidInput(fmt.Sprintf("site %s already exists", id))
			}
		}
		st.Sites = append(st.Sites, row.Clone())
		return true, nil
	})
}

// UpdateSite merges updates into the row with the given site ID.
func (s *FileStore) UpdateSite(ctx context.Context, siteID string, updates Row) error {
	return s.transact(ctx, func(st *fileState) (bool, error) {
		for _, existing := range st.Sites {
			if strings.EqualFold(existing["site_id"], siteID) {
				for k, v := range updates {
					existing[k] = v
				}
				return true, nil
			}
		}
		return false, saherrors.NotFound(fmt.Sprintf("site %s not found", siteID))
	})
}

// ReadSupport returns all support entries for a site, oldest first.
func (s *FileStore) ReadSupport(ctx context.Context, siteID string) ([]Row, error) {
	var out []Row
	err := s.transact(ctx, func(st *fileState) (bool, error) {
		out = filterBySite(st.Support, siteID)
		return false, nil
	})
	return out, err
}

// AppendSupport adds a support entry and assigns it the next ticket ID.
func (s *FileStore) AppendSupport(ctx context.Context, row Row) (string, error) {
	var ticketID string
	err := s.transact(ctx, func(st *fileState) (bool, error) {
		st.NextTicket++
		ticketID = fmt.Sprintf("SUP-%03d", st.NextTicket)

		r := row.Clone()
		r["ticket_id"] = ticketID
		st.Support = append(st.Support, r)
		return true, nil
	})
	return ticketID, err
}

// FindSupportRow locates a support entry for a follow-up update. With a
// ticket ID the match is exact; without one the most recent unresolved
// entry for the site wins.
func (s *FileStore) FindSupportRow(ctx context.Context, siteID, ticketID string) (int, error) {
	index := 0
	err := s.transact(ctx, func(st *fileState) (bool, error) {
		if ticketID != "" {
			for i, r := range st.Support {
				if strings.EqualFold(r["ticket_id"], ticketID) {
					index = i + 1
					return false, nil
				}
			}
			return false, saherrors.NotFound(fmt.Sprintf("ticket %s not found", ticketID))
		}

		for i := len(st.Support) - 1; i >= 0; i-- {
			r := st.Support[i]
			if strings.EqualFold(r["site_id"], siteID) && r["status"] != "Resolved" {
				index = i + 1
				return false, nil
			}
		}
		return false, saherrors.NotFound(fmt.Sprintf("no open support entry for site %s", siteID))
	})
	return index, err
}

// UpdateSupportRow merges updates into the 1-based row returned by
// FindSupportRow.
func (s *FileStore) UpdateSupportRow(ctx context.Context, rowIndex int, updates Row) error {
	return s.transact(ctx, func(st *fileState) (bool, error) {
		if rowIndex < 1 || rowIndex > len(st.Support) {
			return false, saherrors.NotFound(fmt.Sprintf("support row %d not found", rowIndex))
		}
		row := st.Support[rowIndex-1]
		for k, v := range updates {
			row[k] = v
		}
		return true, nil
	})
}

// ListOpenTickets returns unresolved support entries. siteID == "" lists
// every site.
func (s *FileStore) ListOpenTickets(ctx context.Context, siteID string) ([]Row, error) {
	var out []Row
	err := s.transact(ctx, func(st *fileState) (bool, error) {
		for _, r := range st.Support {
			if r["status"] == "Resolved" {
				continue
			}
			if siteID != "" && !strings.EqualFold(r["site_id"], siteID) {
				continue
			}
			out = append(out, r.Clone())
		}
		return false, nil
	})
	return out, err
}

// ReadHardware returns hardware entries for a site, or all when siteID is
// empty.
func (s *FileStore) ReadHardware(ctx context.Context, siteID string) ([]Row, error) {
	var out []Row
	err := s.transact(ctx, func(st *fileState) (bool, error) {
		if siteID == "" {
			out = cloneRows(st.Hardware)
		} else {
			out = filterBySite(st.Hardware, siteID)
		}
		return false, nil
	})
	return out, err
}

// AppendHardware adds a hardware inventory entry.
func (s *FileStore) AppendHardware(ctx context.Context, row Row) error {
	return s.transact(ctx, func(st *fileState) (bool, error) {
		st.Hardware = append(st.Hardware, row.Clone())
		return true, nil
	})
}

// ReadImplementation returns the implementation row for a site.
func (s *FileStore) ReadImplementation(ctx context.Context, siteID string) (Row, error) {
	var out Row
	err := s.transact(ctx, func(st *fileState) (bool, error) {
		for _, r := range st.Implementation {
			if strings.EqualFold(r["site_id"], siteID) {
				out = r.Clone()
				return false, nil
			}
		}
		return false, saherrors.NotFound(fmt.Sprintf("no implementation entry for site %s", siteID))
	})
	return out, err
}

// ReadAllImplementation returns every implementation row.
func (s *FileStore) ReadAllImplementation(ctx context.Context) ([]Row, error) {
	var out []Row
	err := s.transact(ctx, func(st *fileState) (bool, error) {
		out = cloneRows(st.Implementation)
		return false, nil
	})
	return out, err
}

// UpdateImplementation upserts the implementation row for a site. A site
// gets exactly one row; repeated updates merge into it.
func (s *FileStore) UpdateImplementation(ctx context.Context, siteID string, updates Row) error {
	return s.transact(ctx, func(st *fileState) (bool, error) {
		for _, r := range st.Implementation {
			if strings.EqualFold(r["site_id"], siteID) {
				for k, v := range updates {
					r[k] = v
				}
				return true, nil
			}
		}

		r := updates.Clone()
		r["site_id"] = siteID
		st.Implementation = append(st.Implementation, r)
		return true, nil
	})
}

// ReadStock returns stock entries, filtered by location when given.
func (s *FileStore) ReadStock(ctx context.Context, location string) ([]Row, error) {
	var out []Row
	err := s.transact(ctx, func(st *fileState) (bool, error) {
		for _, r := range st.Stock {
			if location != "" && !strings.EqualFold(r["location"], location) {
				continue
			}
			out = append(out, r.Clone())
		}
		return false, nil
	})
	return out, err
}

// AppendStock adds a stock ledger entry.
func (s *FileStore) AppendStock(ctx context.Context, row Row) error {
	return s.transact(ctx, func(st *fileState) (bool, error) {
		st.Stock = append(st.Stock, row.Clone())
		return true, nil
	})
}

// AppendFeedback adds a feedback entry.
func (s *FileStore) AppendFeedback(ctx context.Context, row Row) error {
	return s.transact(ctx, func(st *fileState) (bool, error) {
		st.Feedback = append(st.Feedback, row.Clone())
		return true, nil
	})
}

// NextSiteID returns the next free ID for a prefix/region pair, e.g.
// ("MIG", "TR") with MIG-TR-01 and MIG-TR-02 taken yields MIG-TR-03.
func (s *FileStore) NextSiteID(ctx context.Context, prefix, region string) (string, error) {
	prefix = strings.ToUpper(prefix)
	region = strings.ToUpper(region)

	var next string
	err := s.transact(ctx, func(st *fileState) (bool, error) {
		head := prefix + "-" + region + "-"

		var taken []int
		for _, r := range st.Sites {
			id := strings.ToUpper(r["site_id"])
			if !strings.HasPrefix(id, head) {
				continue
			}
			if n, err := strconv.Atoi(id[len(head):]); err == nil {
				taken = append(taken, n)
			}
		}

		sort.Ints(taken)
		max := 0
		if len(taken) > 0 {
			max = taken[len(taken)-1]
		}
		next = fmt.Sprintf("%s%02d", head, max+1)
		return false, nil
	})
	return next, err
}
