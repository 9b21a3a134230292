// resolver/resolver.go
package resolver

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/dirsync/logging"
	"github.com/dev-mohitbeniwal/dirsync/model"
	"github.com/dev-mohitbeniwal/dirsync/registry"
)

// Resolver decides whether a group or stem is in scope for synchronization.
// A node is in scope when it, or any ancestor stem up to the root, carries a
// direct assignment of the sync marker attribute.
//
// Decisions are memoized for the lifetime of the connector instance. The
// memo has no TTL: a recorded decision is authoritative until the node is
// deleted (Forget) or the connector is re-initialized. Marker assignments
// changing upstream are expected to arrive as changelog records, which is
// what keeps this trust boundary sound.
type Resolver struct {
	consumerName string
	registry     registry.Registry
	markerID     string

	// decisions maps node name to its in-scope decision. Absence means the
	// node has not been resolved yet.
	mu        sync.RWMutex
	decisions map[string]bool
}

// New creates a resolver for one connector instance. markerID is the
// registry ID of the sync marker attribute.
func New(consumerName string, reg registry.Registry, markerID string) *Resolver {
	return &Resolver{
		consumerName: consumerName,
		registry:     reg,
		markerID:     markerID,
		decisions:    make(map[string]bool),
	}
}

// ShouldSyncGroup reports whether the group is in scope for sync.
func (r *Resolver) ShouldSyncGroup(ctx context.Context, group *model.Group) (bool, error) {
	if decision, ok := r.lookup(group.Name); ok {
		return decision, nil
	}

	result, err := r.registry.HasGroupAssignment(ctx, group.Name, r.markerID)
	if err != nil {
		return false, err
	}
	if !result {
		result, err = r.resolveStemName(ctx, group.ParentStemName())
		if err != nil {
			return false, err
		}
	}

	r.record(group.Name, result)
	return result, nil
}

// ShouldSyncStem reports whether the stem is in scope for sync.
func (r *Resolver) ShouldSyncStem(ctx context.Context, stem *model.Stem) (bool, error) {
	return r.resolveStemName(ctx, stem.Name)
}

// resolveStemName walks up the namespace with an explicit stack instead of
// recursing, so namespace depth never threatens the call stack. The
// semantics are exactly those of the recursive definition: a stem is in
// scope when it has a direct assignment, or when its parent is in scope; the
// root stem's parent is nothing, so the walk terminates there.
func (r *Resolver) resolveStemName(ctx context.Context, stemName string) (bool, error) {
	var pending []string

	// Climb until a memoized ancestor or the root.
	name := stemName
	result := false
	for {
		if decision, ok := r.lookup(name); ok {
			result = decision
			break
		}
		pending = append(pending, name)
		if name == model.RootStemName {
			break
		}
		stem := model.Stem{Name: name}
		name = stem.ParentStemName()
	}

	// Unwind: each pending stem inherits its parent's decision unless it
	// carries a direct assignment of its own.
	for i := len(pending) - 1; i >= 0; i-- {
		direct, err := r.registry.HasStemAssignment(ctx, pending[i], r.markerID)
		if err != nil {
			return false, err
		}
		result = direct || result
		r.record(pending[i], result)
	}

	return result, nil
}

// CacheSyncedObjects bulk-loads the decision cache from the registry's
// direct marker assignments, so mass operations skip the per-node walk.
// With fullyPopulate every descendant group of an in-scope stem is marked
// too. Only positive decisions are recorded; anything absent afterwards is
// still "unknown" and resolves lazily.
func (r *Resolver) CacheSyncedObjects(ctx context.Context, fullyPopulate bool) error {
	stems, err := r.registry.StemsWithAssignment(ctx, r.markerID)
	if err != nil {
		return err
	}
	for _, stem := range stems {
		r.record(stem.Name, true)

		if fullyPopulate {
			groups, err := r.registry.ChildGroups(ctx, stem.Name, registry.ScopeSub)
			if err != nil {
				return err
			}
			for _, group := range groups {
				r.record(group.Name, true)
			}
		}
	}

	groups, err := r.registry.GroupsWithAssignment(ctx, r.markerID)
	if err != nil {
		return err
	}
	for _, group := range groups {
		r.record(group.Name, true)
	}

	logger.Debug("Seeded sync decision cache",
		zap.String("consumer", r.consumerName),
		zap.Int("stems", len(stems)),
		zap.Int("groups", len(groups)),
		zap.Bool("fullyPopulate", fullyPopulate))
	return nil
}

// Forget drops the memoized decision for a deleted node so a later query
// resolves it from scratch.
func (r *Resolver) Forget(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.decisions, name)
}

// ForgetSubtree drops the memoized decisions for a stem and every node under
// it. A marker change on a stem invalidates each descendant's decision, stems
// included, because all of them may have inherited through it.
func (r *Resolver) ForgetSubtree(stemName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stemName == model.RootStemName {
		r.decisions = make(map[string]bool)
		return
	}

	delete(r.decisions, stemName)
	prefix := stemName + model.NameSeparator
	for name := range r.decisions {
		if strings.HasPrefix(name, prefix) {
			delete(r.decisions, name)
		}
	}
}

// Decisions returns a snapshot of the decision cache for diagnostics.
func (r *Resolver) Decisions() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]bool, len(r.decisions))
	for name, decision := range r.decisions {
		snapshot[name] = decision
	}
	return snapshot
}

func (r *Resolver) lookup(name string) (bool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	decision, ok := r.decisions[name]
	return decision, ok
}

func (r *Resolver) record(name string, decision bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.decisions[name] = decision
}
