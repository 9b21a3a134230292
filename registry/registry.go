// registry/registry.go
package registry

import (
	"context"

	"github.com/dev-mohitbeniwal/dirsync/model"
)

// ChildScope selects how deep a child-group enumeration reaches.
type ChildScope string

const (
	// ScopeOne returns only the stem's immediate child groups.
	ScopeOne ChildScope = "ONE"

	// ScopeSub returns every group anywhere under the stem.
	ScopeSub ChildScope = "SUB"
)

// Registry is the read interface onto the source-of-truth identity registry.
// Lookups return (nil, nil) when the entity does not exist.
type Registry interface {
	FindGroup(ctx context.Context, name string) (*model.Group, error)
	FindStem(ctx context.Context, name string) (*model.Stem, error)
	FindSubject(ctx context.Context, sourceID, subjectID string) (*model.Subject, error)

	// FindSyncMarker resolves the sync-enabled marker attribute by its fully
	// qualified name and returns its ID. The marker's creation is owned by
	// the registry side, never by this connector.
	FindSyncMarker(ctx context.Context, name string) (string, error)

	// HasGroupAssignment and HasStemAssignment report whether the node
	// carries a direct assignment of the marker attribute.
	HasGroupAssignment(ctx context.Context, groupName, markerID string) (bool, error)
	HasStemAssignment(ctx context.Context, stemName, markerID string) (bool, error)

	// StemsWithAssignment and GroupsWithAssignment enumerate every node with
	// a direct assignment of the marker, for bulk pre-population.
	StemsWithAssignment(ctx context.Context, markerID string) ([]*model.Stem, error)
	GroupsWithAssignment(ctx context.Context, markerID string) ([]*model.Group, error)

	// ChildGroups enumerates the groups under a stem at the given scope.
	ChildGroups(ctx context.Context, stemName string, scope ChildScope) ([]*model.Group, error)

	// GroupMembers returns the direct membership records of a group.
	GroupMembers(ctx context.Context, groupName string) ([]model.Member, error)

	// ChangeLogEntries returns up to limit change records with a sequence
	// strictly greater than afterSequence, in sequence order.
	ChangeLogEntries(ctx context.Context, afterSequence int64, limit int) ([]model.ChangeLogEntry, error)
}
