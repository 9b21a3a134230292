// cache/manager.go
package cache

import "github.com/dev-mohitbeniwal/dirsync/model"

// Manager owns the two caches of remote directory entities. The remote
// directory is one shared external system with rate-limited lookups, so the
// process holds exactly one group cache and one user cache regardless of how
// many connector instances exist. The Manager is constructed once in main
// and injected into every connector.
//
// Local registry caches are cheap to rebuild and live on the connector
// itself, not here.
type Manager struct {
	directoryGroups *Cache[*model.DirectoryGroup]
	directoryUsers  *Cache[*model.DirectoryUser]
}

// NewManager creates the shared directory caches, keyed by primary address.
func NewManager() *Manager {
	return &Manager{
		directoryGroups: New(func(g *model.DirectoryGroup) string { return g.Email }),
		directoryUsers:  New(func(u *model.DirectoryUser) string { return u.PrimaryEmail }),
	}
}

// DirectoryGroups returns the shared remote-group cache.
func (m *Manager) DirectoryGroups() *Cache[*model.DirectoryGroup] {
	return m.directoryGroups
}

// DirectoryUsers returns the shared remote-user cache.
func (m *Manager) DirectoryUsers() *Cache[*model.DirectoryUser] {
	return m.directoryUsers
}
