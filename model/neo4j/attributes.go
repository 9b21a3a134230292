// model/neo4j/attributes.go
package dirsync_neo4j

// Attribute Keys
const (
	// AttrID represents the unique identifier of a node
	AttrID = "id"

	// AttrName represents the fully qualified name of a group or stem
	AttrName = "name"

	// AttrDisplayExtension represents the display name of a group
	AttrDisplayExtension = "displayExtension"

	// AttrDisplayName represents the display name of a stem
	AttrDisplayName = "displayName"

	// AttrDescription represents the description attribute of a node
	AttrDescription = "description"

	// AttrSourceID represents the source a subject was loaded from
	AttrSourceID = "sourceId"

	// AttrSubjectID represents a subject's identifier within its source
	AttrSubjectID = "subjectId"

	// AttrMemberType represents the membership type (person or group)
	AttrMemberType = "memberType"

	// AttrSequence represents the monotonic position of a change record
	AttrSequence = "sequence"

	// AttrCategory represents the kind of change a record describes
	AttrCategory = "category"

	// AttrGroupName represents the group a change record refers to
	AttrGroupName = "groupName"

	// AttrStemName represents the stem a change record refers to
	AttrStemName = "stemName"

	// AttrOccurredAt represents when the change happened in the registry
	AttrOccurredAt = "occurredAt"
)
