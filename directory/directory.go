// directory/directory.go
package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dev-mohitbeniwal/dirsync/model"
)

// Client is the remote directory service. Implementations own transport,
// authentication and retry concerns; the connector only sees these calls.
type Client interface {
	RetrieveAllUsers(ctx context.Context) ([]*model.DirectoryUser, error)
	RetrieveAllGroups(ctx context.Context) ([]*model.DirectoryGroup, error)
	RetrieveUser(ctx context.Context, userKey string) (*model.DirectoryUser, error)
	RetrieveGroup(ctx context.Context, groupKey string) (*model.DirectoryGroup, error)
	AddUser(ctx context.Context, user *model.DirectoryUser) (*model.DirectoryUser, error)
	AddGroup(ctx context.Context, group *model.DirectoryGroup) (*model.DirectoryGroup, error)
	UpdateGroup(ctx context.Context, groupKey string, group *model.DirectoryGroup) (*model.DirectoryGroup, error)
	RemoveGroup(ctx context.Context, groupKey string) error
	AddGroupMember(ctx context.Context, groupKey string, member *model.DirectoryMember) error
	RemoveGroupMember(ctx context.Context, groupKey, userKey string) error
	RetrieveGroupMembers(ctx context.Context, groupKey string) ([]*model.DirectoryMember, error)
	RetrieveGroupSettings(ctx context.Context, groupKey string) (*model.GroupSettings, error)
	UpdateGroupSettings(ctx context.Context, groupKey string, settings *model.GroupSettings) (*model.GroupSettings, error)
}

// Error is a structured error reported by the directory service, as opposed
// to a transport failure.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("directory service error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is the directory service saying the entity
// does not exist. Reads treat this as absence, never as a failure.
func IsNotFound(err error) bool {
	var dirErr *Error
	if errors.As(err, &dirErr) {
		return dirErr.StatusCode == http.StatusNotFound
	}
	return false
}
