// model/neo4j/relationships.go
package dirsync_neo4j

// Relationship Types
const (
	// RelChildOf represents the relationship between a node and its parent stem
	RelChildOf = "CHILD_OF"

	// RelHasMember represents the relationship between a group and a subject
	RelHasMember = "HAS_MEMBER"

	// RelAssigned represents a direct attribute assignment on a group or stem
	RelAssigned = "ASSIGNED"
)
