// model/changelog.go
package model

import "time"

// ChangeCategory identifies what kind of registry change a changelog record
// describes.
type ChangeCategory string

const (
	ChangeGroupAdd         ChangeCategory = "GROUP_ADD"
	ChangeGroupUpdate      ChangeCategory = "GROUP_UPDATE"
	ChangeGroupDelete      ChangeCategory = "GROUP_DELETE"
	ChangeMembershipAdd    ChangeCategory = "MEMBERSHIP_ADD"
	ChangeMembershipDelete ChangeCategory = "MEMBERSHIP_DELETE"
	ChangeSyncAssigned     ChangeCategory = "SYNC_ATTRIBUTE_ASSIGNED"
	ChangeSyncUnassigned   ChangeCategory = "SYNC_ATTRIBUTE_UNASSIGNED"
)

// ChangeLogEntry is one discrete change delivered by the registry's
// changelog. Records are processed strictly in sequence order.
type ChangeLogEntry struct {
	Sequence   int64          `json:"sequence"`
	Category   ChangeCategory `json:"category"`
	GroupName  string         `json:"group_name,omitempty"`
	StemName   string         `json:"stem_name,omitempty"`
	SubjectID  string         `json:"subject_id,omitempty"`
	SourceID   string         `json:"source_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
