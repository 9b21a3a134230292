// model/neo4j/nodes.go
package dirsync_neo4j

// Node Labels
const (
	// LabelGroup represents a group in the registry namespace
	LabelGroup = "Group"

	// LabelStem represents an organizational unit of the namespace
	LabelStem = "Stem"

	// LabelSubject represents a person or service principal
	LabelSubject = "Subject"

	// LabelAttributeDefName represents a named attribute definition,
	// including the sync marker itself
	LabelAttributeDefName = "AttributeDefName"

	// LabelChangeLogEntry represents a single change record emitted by the
	// registry loader jobs
	LabelChangeLogEntry = "ChangeLogEntry"
)
