// Package store provides in-process workflow.Store and workflow.Directory
// implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/outpass-engine/workflow"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps requests in a map guarded by one lock. Values are cloned on
// the way in and out so callers never share state with the store.
type Memory struct {
	mu       sync.RWMutex
	requests map[workflow.RequestID]*workflow.LeaveRequest
}

func NewMemory() *Memory {
	return &Memory{requests: make(map[workflow.RequestID]*workflow.LeaveRequest)}
}

// Create stores a new request with Version 1.
func (m *Memory) Create(_ context.Context, req *workflow.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.requests[req.ID]; exists {
		return fmt.Errorf("request %s: %w", req.ID, workflow.ErrDuplicateRequest)
	}
	req.Version = 1
	m.requests[req.ID] = req.Clone()
	return nil
}

// Get returns a copy of the stored request.
func (m *Memory) Get(_ context.Context, id workflow.RequestID) (*workflow.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, &workflow.NotFoundError{Kind: "request", ID: string(id)}
	}
	return req.Clone(), nil
}

// Query scans every request. Fine for tests and small dev datasets.
func (m *Memory) Query(_ context.Context, f workflow.Filter) ([]*workflow.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*workflow.LeaveRequest
	for _, req := range m.requests {
		if f.Matches(req) {
			out = append(out, req.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Update is a compare-and-swap on Version.
func (m *Memory) Update(_ context.Context, req *workflow.LeaveRequest, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.requests[req.ID]
	if !ok {
		return &workflow.NotFoundError{Kind: "request", ID: string(req.ID)}
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("request %s at version %d, expected %d: %w",
			req.ID, current.Version, expectedVersion, workflow.ErrConcurrentModification)
	}
	req.Version = expectedVersion + 1
	m.requests[req.ID] = req.Clone()
	return nil
}

// =============================================================================
// MEMORY DIRECTORY
// =============================================================================

// Directory is an in-memory requester directory.
type Directory struct {
	mu         sync.RWMutex
	requesters map[string]workflow.Requester
}

func NewDirectory(requesters ...workflow.Requester) *Directory {
	d := &Directory{requesters: make(map[string]workflow.Requester, len(requesters))}
	for _, r := range requesters {
		d.Put(r)
	}
	return d
}

// Put adds or replaces a profile.
func (d *Directory) Put(r workflow.Requester) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r.Residence != nil {
		res := *r.Residence
		r.Residence = &res
	}
	d.requesters[r.ID] = r
}

func (d *Directory) GetRequester(_ context.Context, id string) (*workflow.Requester, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.requesters[id]
	if !ok {
		return nil, &workflow.NotFoundError{Kind: "requester", ID: id}
	}
	if r.Residence != nil {
		res := *r.Residence
		r.Residence = &res
	}
	return &r, nil
}
