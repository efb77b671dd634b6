// Package registry mounts named digestors and groups them for fan-out
// queries.
//
// A Manager maps instance ids to digestors and group ids to ordered lists of
// instance ids. Groups only ever reference registered instances: deleting an
// instance removes it from every group.
//
// Example:
//
//	m := registry.NewManager()
//	_ = m.RegisterInstance("docs", docsDigestor)
//	_ = m.RegisterInstance("notes", notesDigestor)
//	_ = m.CreateGroup("all", []string{"docs", "notes"})
//
//	results, _ := m.QueryGroup(ctx, "all", "deployment checklist", 3, 5)
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oceanbase/mindshard-go/pkg/core"
	"github.com/oceanbase/mindshard-go/pkg/digestor"
	"github.com/oceanbase/mindshard-go/pkg/metrics"
	"github.com/oceanbase/mindshard-go/pkg/storage"
)

// DefaultKPerInstance is the per-member result count used by QueryGroup
// when kPerInstance <= 0.
const DefaultKPerInstance = 3

// Manager is a concurrency-safe registry of digestors and groups.
//
// Structural mutations and check-then-act reads happen under one lock.
// Calls into digestors (query, clear, delete) happen after the lock is
// released, on references snapshotted under it.
type Manager struct {
	mu        sync.RWMutex
	instances map[string]*digestor.Digestor
	groups    map[string][]string

	logger  *slog.Logger
	metrics metrics.Recorder
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.metrics = r
		}
	}
}

// NewManager creates an empty Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		instances: make(map[string]*digestor.Digestor),
		groups:    make(map[string][]string),
		logger:    slog.Default(),
		metrics:   metrics.Noop{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) observe(op string, start time.Time, err error) {
	m.metrics.ObserveOp(metrics.ComponentRegistry, op, time.Since(start), err)
}

// RegisterInstance binds d to id. It fails with core.ErrAlreadyExists if id
// is taken.
func (m *Manager) RegisterInstance(id string, d *digestor.Digestor) (err error) {
	defer func(start time.Time) { m.observe("register_instance", start, err) }(time.Now())

	if id == "" || d == nil {
		return core.Errorf("RegisterInstance", core.ErrInvalidArgument, "id and digestor are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.instances[id]; ok {
		m.logger.Error("instance already registered", slog.String("instance", id))
		return core.Errorf("RegisterInstance", core.ErrAlreadyExists, "instance %q", id)
	}
	m.instances[id] = d
	m.logger.Info("registered instance", slog.String("instance", id))
	return nil
}

// GetInstance returns the digestor bound to id or core.ErrNotFound.
func (m *Manager) GetInstance(id string) (*digestor.Digestor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instanceLocked("GetInstance", id)
}

// GetOrCreate behaves exactly like GetInstance. The registry never creates
// digestors on its own because it has no store or embedder to build them
// from.
func (m *Manager) GetOrCreate(id string) (*digestor.Digestor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instanceLocked("GetOrCreate", id)
}

func (m *Manager) instanceLocked(op, id string) (*digestor.Digestor, error) {
	d, ok := m.instances[id]
	if !ok {
		return nil, core.Errorf(op, core.ErrNotFound, "instance %q", id)
	}
	return d, nil
}

// ListInstances returns every registered id in sorted order.
func (m *Manager) ListInstances() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.instances)
}

// UpdateInstance rebinds an existing id to d.
func (m *Manager) UpdateInstance(id string, d *digestor.Digestor) error {
	if d == nil {
		return core.Errorf("UpdateInstance", core.ErrInvalidArgument, "digestor is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.instanceLocked("UpdateInstance", id); err != nil {
		return err
	}
	m.instances[id] = d
	m.logger.Info("updated instance", slog.String("instance", id))
	return nil
}

// DeleteInstance unregisters id, removes it from every group and clears its
// data. A failing clear is logged and does not fail the call.
func (m *Manager) DeleteInstance(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { m.observe("delete_instance", start, err) }(time.Now())

	m.mu.Lock()
	d, err := m.instanceLocked("DeleteInstance", id)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	delete(m.instances, id)
	for gid, members := range m.groups {
		m.groups[gid] = without(members, id)
	}
	m.mu.Unlock()

	if clearErr := d.Clear(ctx); clearErr != nil {
		m.logger.Warn("clearing deleted instance failed",
			slog.String("instance", id), slog.Any("error", clearErr))
	}
	m.logger.Info("deleted instance", slog.String("instance", id))
	return nil
}

// CreateGroup defines group gid over ids. Every id must be registered; on
// any missing id nothing is created.
func (m *Manager) CreateGroup(gid string, ids []string) (err error) {
	defer func(start time.Time) { m.observe("create_group", start, err) }(time.Now())

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.groups[gid]; ok {
		return core.Errorf("CreateGroup", core.ErrAlreadyExists, "group %q", gid)
	}

	members := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := m.instanceLocked("CreateGroup", id); err != nil {
			return err
		}
		if !contains(members, id) {
			members = append(members, id)
		}
	}

	m.groups[gid] = members
	m.logger.Info("created group", slog.String("group", gid), slog.Any("instances", members))
	return nil
}

// DeleteGroup removes the group definition. Member instances are untouched.
func (m *Manager) DeleteGroup(gid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.groupLocked("DeleteGroup", gid); err != nil {
		return err
	}
	delete(m.groups, gid)
	m.logger.Info("deleted group", slog.String("group", gid))
	return nil
}

// ListGroups returns every group id in sorted order.
func (m *Manager) ListGroups() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.groups)
}

// GroupMembers returns a copy of the instance ids of gid in group order.
func (m *Manager) GroupMembers(gid string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members, err := m.groupLocked("GroupMembers", gid)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), members...), nil
}

func (m *Manager) groupLocked(op, gid string) ([]string, error) {
	members, ok := m.groups[gid]
	if !ok {
		return nil, core.Errorf(op, core.ErrNotFound, "group %q", gid)
	}
	return members, nil
}

// AddToGroup appends id to gid. Adding a present member is a no-op.
func (m *Manager) AddToGroup(gid, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, err := m.groupLocked("AddToGroup", gid)
	if err != nil {
		return err
	}
	if _, err := m.instanceLocked("AddToGroup", id); err != nil {
		return err
	}
	if contains(members, id) {
		return nil
	}
	m.groups[gid] = append(members, id)
	m.logger.Info("added instance to group", slog.String("group", gid), slog.String("instance", id))
	return nil
}

// RemoveFromGroup removes id from gid. It fails with core.ErrNotFound when
// the group does not exist or id is not a member.
func (m *Manager) RemoveFromGroup(gid, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, err := m.groupLocked("RemoveFromGroup", gid)
	if err != nil {
		return err
	}
	if !contains(members, id) {
		return core.Errorf("RemoveFromGroup", core.ErrNotFound, "instance %q in group %q", id, gid)
	}
	m.groups[gid] = without(members, id)
	m.logger.Info("removed instance from group", slog.String("group", gid), slog.String("instance", id))
	return nil
}

// GetGroup returns the digestors of gid in group order.
func (m *Manager) GetGroup(gid string) ([]*digestor.Digestor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.groupEnginesLocked("GetGroup", gid)
}

func (m *Manager) groupEnginesLocked(op, gid string) ([]*digestor.Digestor, error) {
	members, err := m.groupLocked(op, gid)
	if err != nil {
		return nil, err
	}
	engines := make([]*digestor.Digestor, 0, len(members))
	for _, id := range members {
		if d, ok := m.instances[id]; ok {
			engines = append(engines, d)
		}
	}
	return engines, nil
}

// QueryInstance queries one digestor.
func (m *Manager) QueryInstance(ctx context.Context, id, text string, k int) ([]*storage.Result, error) {
	d, err := m.GetInstance(id)
	if err != nil {
		return nil, err
	}
	return d.Query(ctx, text, k), nil
}

// QueryGroup queries every member of gid with kPerInstance, merges the
// results by descending score and keeps the first topK (all when
// topK <= 0). Equal scores keep group order. A member that fails
// contributes nothing.
func (m *Manager) QueryGroup(ctx context.Context, gid, text string, kPerInstance, topK int) (results []*storage.Result, err error) {
	defer func(start time.Time) { m.observe("query_group", start, err) }(time.Now())

	m.mu.RLock()
	engines, err := m.groupEnginesLocked("QueryGroup", gid)
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if kPerInstance <= 0 {
		kPerInstance = DefaultKPerInstance
	}

	// one slot per member keeps the merge order independent of scheduling
	slots := make([][]*storage.Result, len(engines))
	var wg sync.WaitGroup
	for i, d := range engines {
		wg.Add(1)
		go func(i int, d *digestor.Digestor) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					m.logger.Warn("group member query failed",
						slog.String("group", gid), slog.String("instance", d.Name()),
						slog.Any("error", fmt.Errorf("panic: %v", r)))
				}
			}()
			slots[i] = d.Query(ctx, text, kPerInstance)
		}(i, d)
	}
	wg.Wait()

	merged := make([]*storage.Result, 0, len(engines)*kPerInstance)
	for _, slot := range slots {
		merged = append(merged, slot...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

// ClearGroup clears every member of gid. Member failures are logged.
func (m *Manager) ClearGroup(ctx context.Context, gid string) error {
	m.mu.RLock()
	engines, err := m.groupEnginesLocked("ClearGroup", gid)
	m.mu.RUnlock()
	if err != nil {
		return err
	}

	for _, d := range engines {
		if err := d.Clear(ctx); err != nil {
			m.logger.Warn("clearing group member failed",
				slog.String("group", gid), slog.String("instance", d.Name()), slog.Any("error", err))
		}
	}
	m.logger.Info("cleared group", slog.String("group", gid))
	return nil
}

// ClearAll clears the data of every instance and then resets the registry:
// afterwards no instance or group is registered. Clear failures are logged.
func (m *Manager) ClearAll(ctx context.Context) {
	m.mu.Lock()
	instances := m.instances
	m.instances = make(map[string]*digestor.Digestor)
	m.groups = make(map[string][]string)
	m.mu.Unlock()

	for _, id := range sortedKeys(instances) {
		if err := instances[id].Clear(ctx); err != nil {
			m.logger.Warn("clearing instance failed", slog.String("instance", id), slog.Any("error", err))
		}
	}
	m.logger.Info("cleared registry", slog.Int("instances", len(instances)))
}

// DeleteDocuments deletes the records of instance id matching filters.
func (m *Manager) DeleteDocuments(ctx context.Context, id string, filters map[string]interface{}) (n int, err error) {
	defer func(start time.Time) { m.observe("delete_documents", start, err) }(time.Now())

	d, err := m.GetInstance(id)
	if err != nil {
		return 0, err
	}
	return d.DeleteByMetadata(ctx, filters)
}

// DeleteGroupDocuments deletes matching records from every member of gid
// and returns the total removed. A failing member does not stop the others;
// its error is joined into the result.
func (m *Manager) DeleteGroupDocuments(ctx context.Context, gid string, filters map[string]interface{}) (total int, err error) {
	defer func(start time.Time) { m.observe("delete_group_documents", start, err) }(time.Now())

	m.mu.RLock()
	engines, err := m.groupEnginesLocked("DeleteGroupDocuments", gid)
	m.mu.RUnlock()
	if err != nil {
		return 0, err
	}

	var errs []error
	for _, d := range engines {
		n, err := d.DeleteByMetadata(ctx, filters)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
			continue
		}
		total += n
	}
	return total, errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func without(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
