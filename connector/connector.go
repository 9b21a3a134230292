// connector/connector.go
package connector

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/dirsync/cache"
	"github.com/dev-mohitbeniwal/dirsync/config"
	"github.com/dev-mohitbeniwal/dirsync/directory"
	dirsync_errors "github.com/dev-mohitbeniwal/dirsync/errors"
	logger "github.com/dev-mohitbeniwal/dirsync/logging"
	"github.com/dev-mohitbeniwal/dirsync/model"
	"github.com/dev-mohitbeniwal/dirsync/registry"
	"github.com/dev-mohitbeniwal/dirsync/resolver"
	"github.com/dev-mohitbeniwal/dirsync/util"
)

// SubjectEmailAttribute is the subject attribute consulted for an explicit
// primary address before falling back to address qualification.
const SubjectEmailAttribute = "email"

// Connector reconciles registry groups and memberships into the remote
// directory service. One connector instance processes one change record at a
// time; the two directory caches it consults are shared process-wide through
// the cache Manager, the registry caches are its own.
type Connector struct {
	name      string
	props     *config.SyncProperties
	directory directory.Client
	caches    *cache.Manager
	registry  registry.Registry

	localGroups   *cache.Cache[*model.Group]
	localSubjects *cache.Cache[*model.Subject]

	resolver  *resolver.Resolver
	addresses *util.AddressFormatter
}

// New assembles a connector. Initialize must be called before use.
func New(props *config.SyncProperties, dir directory.Client, caches *cache.Manager, reg registry.Registry) *Connector {
	return &Connector{
		name:      props.ConsumerName,
		props:     props,
		directory: dir,
		caches:    caches,
		registry:  reg,
	}
}

// Initialize resolves the sync marker, configures addressing and seeds the
// caches. The directory caches outlive connector re-initializations and are
// only reseeded here when expired.
func (c *Connector) Initialize(ctx context.Context) error {
	markerID, err := c.registry.FindSyncMarker(ctx, c.props.SyncMarkerName)
	if err != nil {
		return fmt.Errorf("resolving sync marker %q: %w", c.props.SyncMarkerName, err)
	}
	c.resolver = resolver.New(c.name, c.registry, markerID)

	c.addresses = util.NewAddressFormatter().
		SetGroupIdentifierExpression(c.props.GroupIdentifierExpression).
		SetSubjectIdentifierExpression(c.props.SubjectIdentifierExpression).
		SetDomain(c.props.Domain)

	c.caches.DirectoryUsers().SetCacheValidity(c.props.DirectoryUserCacheValidity)
	c.PopulateUserCache(ctx)

	c.caches.DirectoryGroups().SetCacheValidity(c.props.DirectoryGroupCacheValidity)
	c.PopulateGroupCache(ctx)

	c.localGroups = cache.New(func(g *model.Group) string { return g.Name })
	c.localGroups.SetCacheValidity(c.props.LocalCacheValidity)
	c.localGroups.SeedSize(100)

	c.localSubjects = cache.New(func(s *model.Subject) string { return subjectKey(s.SourceID, s.ID) })
	c.localSubjects.SetCacheValidity(c.props.LocalCacheValidity)
	c.localSubjects.SeedSize(1000)

	logger.Info("Connector initialized",
		zap.String("consumer", c.name),
		zap.String("markerID", markerID))
	return nil
}

func subjectKey(sourceID, subjectID string) string {
	return sourceID + "__" + subjectID
}

// PopulateUserCache reseeds the shared directory-user cache when it has
// expired. Enumeration failures are logged and the stale cache stays in
// service; a full listing is an optimization, not a correctness requirement.
func (c *Connector) PopulateUserCache(ctx context.Context) {
	logger.Debug("Populating the directory user cache", zap.String("consumer", c.name))

	if !c.caches.DirectoryUsers().IsExpired() {
		return
	}

	users, err := c.directory.RetrieveAllUsers(ctx)
	if err != nil {
		logger.Error("Failed to populate the directory user cache",
			zap.Error(err),
			zap.String("consumer", c.name))
		return
	}
	c.caches.DirectoryUsers().Seed(users)
}

// PopulateGroupCache reseeds the shared directory-group cache when it has
// expired.
func (c *Connector) PopulateGroupCache(ctx context.Context) {
	logger.Debug("Populating the directory group cache", zap.String("consumer", c.name))

	if !c.caches.DirectoryGroups().IsExpired() {
		return
	}

	groups, err := c.directory.RetrieveAllGroups(ctx)
	if err != nil {
		logger.Error("Failed to populate the directory group cache",
			zap.Error(err),
			zap.String("consumer", c.name))
		return
	}
	c.caches.DirectoryGroups().Seed(groups)
}

// FetchDirectoryGroup reads through the shared group cache. A miss triggers
// a remote lookup that backfills the cache; "not found" and transport
// failures both surface as absence, the latter with an error log.
func (c *Connector) FetchDirectoryGroup(ctx context.Context, groupKey string) *model.DirectoryGroup {
	group, ok := c.caches.DirectoryGroups().Get(groupKey)
	if ok {
		return group
	}

	group, err := c.directory.RetrieveGroup(ctx, groupKey)
	if err != nil {
		if !directory.IsNotFound(err) {
			logger.Error("Error fetching group from the directory",
				zap.Error(err),
				zap.String("consumer", c.name),
				zap.String("groupKey", groupKey))
		}
		return nil
	}

	if group != nil {
		c.caches.DirectoryGroups().Put(group)
	}
	return group
}

// FetchDirectoryUser reads through the shared user cache.
func (c *Connector) FetchDirectoryUser(ctx context.Context, userKey string) *model.DirectoryUser {
	user, ok := c.caches.DirectoryUsers().Get(userKey)
	if ok {
		return user
	}

	user, err := c.directory.RetrieveUser(ctx, userKey)
	if err != nil {
		if !directory.IsNotFound(err) {
			logger.Warn("Error fetching user from the directory",
				zap.Error(err),
				zap.String("consumer", c.name),
				zap.String("userKey", userKey))
		}
		return nil
	}

	if user != nil {
		c.caches.DirectoryUsers().Put(user)
	}
	return user
}

// FetchLocalGroup reads through the connector's registry group cache.
func (c *Connector) FetchLocalGroup(ctx context.Context, groupName string) (*model.Group, error) {
	group, ok := c.localGroups.Get(groupName)
	if ok {
		return group, nil
	}

	group, err := c.registry.FindGroup(ctx, groupName)
	if err != nil {
		return nil, err
	}
	if group != nil {
		c.localGroups.Put(group)
	}
	return group, nil
}

// FetchLocalSubject reads through the connector's registry subject cache.
func (c *Connector) FetchLocalSubject(ctx context.Context, sourceID, subjectID string) (*model.Subject, error) {
	subject, ok := c.localSubjects.Get(subjectKey(sourceID, subjectID))
	if ok {
		return subject, nil
	}

	subject, err := c.registry.FindSubject(ctx, sourceID, subjectID)
	if err != nil {
		return nil, err
	}
	if subject != nil {
		c.localSubjects.Put(subject)
	}
	return subject, nil
}

// CreateUser provisions a directory account for the subject. Returns
// (nil, nil) when user provisioning is disabled. The generated password is
// never stored; directory accounts authenticate through federated identity.
func (c *Connector) CreateUser(ctx context.Context, subject *model.Subject) (*model.DirectoryUser, error) {
	if !c.props.ProvisionUsers {
		return nil, nil
	}

	email := subject.AttributeValue(SubjectEmailAttribute)
	if email == "" {
		email = c.addresses.QualifySubjectAddress(subject.ID)
	}

	password, err := randomPassword()
	if err != nil {
		return nil, err
	}

	newUser := &model.DirectoryUser{
		PrimaryEmail:               email,
		Password:                   password,
		IncludeInGlobalAddressList: c.props.IncludeUserInGlobalAddressList,
		Name:                       model.DirectoryUserName{FullName: subject.Name},
	}

	if c.props.SimpleSubjectNaming {
		parts := strings.Fields(subject.Name)
		if len(parts) > 0 {
			newUser.Name.GivenName = parts[0]
			newUser.Name.FamilyName = parts[len(parts)-1]
		}
	} else {
		newUser.Name.GivenName = subject.AttributeValue(c.props.SubjectGivenNameField)
		newUser.Name.FamilyName = subject.AttributeValue(c.props.SubjectSurnameField)
	}

	created, err := c.directory.AddUser(ctx, newUser)
	if err != nil {
		return nil, fmt.Errorf("creating directory user %s: %w", email, err)
	}
	c.caches.DirectoryUsers().Put(created)

	logger.Info("Directory user created",
		zap.String("consumer", c.name),
		zap.String("userKey", created.PrimaryEmail))
	return created, nil
}

// AddMember adds the user to the directory group with the given role.
func (c *Connector) AddMember(ctx context.Context, group *model.DirectoryGroup, user *model.DirectoryUser, role string) error {
	member := &model.DirectoryMember{
		Email: user.PrimaryEmail,
		Role:  role,
	}
	return c.directory.AddGroupMember(ctx, group.Email, member)
}

// CreateGroupIfNecessary makes the remote directory reflect the local group:
// absent groups are created, given the configured default settings and their
// person members; groups that already exist but were archived are restored.
func (c *Connector) CreateGroupIfNecessary(ctx context.Context, localGroup *model.Group) error {
	groupKey := c.addresses.QualifyGroupAddress(localGroup.Name)

	directoryGroup := c.FetchDirectoryGroup(ctx, groupKey)
	if directoryGroup != nil {
		return c.unarchiveIfNeeded(ctx, groupKey)
	}

	created, err := c.directory.AddGroup(ctx, &model.DirectoryGroup{
		Name:        localGroup.DisplayExtension,
		Email:       groupKey,
		Description: localGroup.Description,
	})
	if err != nil {
		return fmt.Errorf("creating directory group %s: %w", groupKey, err)
	}
	c.caches.DirectoryGroups().Put(created)

	// The default settings bundle is applied verbatim; its contents are
	// owned by configuration.
	settings := c.props.DefaultGroupSettings
	if _, err := c.directory.UpdateGroupSettings(ctx, groupKey, &settings); err != nil {
		return fmt.Errorf("applying default settings to %s: %w", groupKey, err)
	}

	members, err := c.registry.GroupMembers(ctx, localGroup.Name)
	if err != nil {
		return fmt.Errorf("listing members of %s: %w", localGroup.Name, err)
	}

	for _, member := range members {
		if member.Type != model.MemberTypePerson {
			continue
		}

		subject, err := c.FetchLocalSubject(ctx, member.SourceID, member.SubjectID)
		if err != nil {
			return err
		}
		if subject == nil {
			logger.Warn("Member subject not found in the registry",
				zap.String("consumer", c.name),
				zap.String("subjectID", member.SubjectID),
				zap.String("sourceID", member.SourceID))
			continue
		}

		userKey := c.addresses.QualifySubjectAddress(subject.ID)
		user := c.FetchDirectoryUser(ctx, userKey)
		if user == nil {
			user, err = c.CreateUser(ctx, subject)
			if err != nil {
				return err
			}
		}

		if user != nil {
			if err := c.AddMember(ctx, created, user, model.RoleMember); err != nil {
				return fmt.Errorf("adding %s to %s: %w", user.PrimaryEmail, groupKey, err)
			}
		}
	}

	logger.Info("Directory group created",
		zap.String("consumer", c.name),
		zap.String("groupKey", groupKey),
		zap.Int("members", len(members)))
	return nil
}

// unarchiveIfNeeded restores a previously archived directory group. This is
// the idempotent repair path for a group recreated after deletion under the
// archive policy.
func (c *Connector) unarchiveIfNeeded(ctx context.Context, groupKey string) error {
	settings, err := c.directory.RetrieveGroupSettings(ctx, groupKey)
	if err != nil {
		return fmt.Errorf("retrieving settings of %s: %w", groupKey, err)
	}

	if settings.ArchiveOnly {
		settings.ArchiveOnly = false
		if _, err := c.directory.UpdateGroupSettings(ctx, groupKey, settings); err != nil {
			return fmt.Errorf("unarchiving %s: %w", groupKey, err)
		}
		logger.Info("Directory group unarchived",
			zap.String("consumer", c.name),
			zap.String("groupKey", groupKey))
	}

	return nil
}

// DeleteGroup applies the deletion policy to the local group's remote
// counterpart.
func (c *Connector) DeleteGroup(ctx context.Context, localGroup *model.Group) error {
	return c.DeleteGroupByName(ctx, localGroup.Name)
}

// DeleteGroupByName applies the deletion policy by local group name. The
// local caches and the memoized sync decision are dropped even when the
// remote operation fails: the node is gone from the registry either way.
func (c *Connector) DeleteGroupByName(ctx context.Context, groupName string) error {
	defer func() {
		c.localGroups.Remove(groupName)
		c.resolver.Forget(groupName)
	}()

	groupKey := c.addresses.QualifyGroupAddress(groupName)
	return c.deleteGroupByKey(ctx, groupKey)
}

func (c *Connector) deleteGroupByKey(ctx context.Context, groupKey string) error {
	switch c.props.HandleDeletedGroup {
	case config.DeletionPolicyArchive:
		settings, err := c.directory.RetrieveGroupSettings(ctx, groupKey)
		if err != nil {
			return fmt.Errorf("retrieving settings of %s: %w", groupKey, err)
		}
		settings.ArchiveOnly = true
		if _, err := c.directory.UpdateGroupSettings(ctx, groupKey, settings); err != nil {
			return fmt.Errorf("archiving %s: %w", groupKey, err)
		}

	case config.DeletionPolicyDelete:
		if err := c.directory.RemoveGroup(ctx, groupKey); err != nil {
			return fmt.Errorf("removing directory group %s: %w", groupKey, err)
		}
		c.caches.DirectoryGroups().Remove(groupKey)

	case config.DeletionPolicyIgnore:
		// The remote group is left untouched on purpose.
	}

	return nil
}

// RemoveMembership removes the subject from the remote group. Checking for
// residual memberships before deprovisioning the account is not supported
// yet; when deprovisioning is enabled the request is surfaced in the log
// rather than silently acted on.
func (c *Connector) RemoveMembership(ctx context.Context, groupName string, subject *model.Subject) error {
	groupKey := c.addresses.QualifyGroupAddress(groupName)
	userKey := c.addresses.QualifySubjectAddress(subject.ID)

	if err := c.directory.RemoveGroupMember(ctx, groupKey, userKey); err != nil {
		return fmt.Errorf("removing %s from %s: %w", userKey, groupKey, err)
	}

	if c.props.DeprovisionUsers {
		logger.Warn("Deprovisioning requested",
			zap.Error(dirsync_errors.ErrDeprovisionNotSupported),
			zap.String("consumer", c.name),
			zap.String("userKey", userKey))
	}

	return nil
}

// UpdateGroup pushes an updated group object to the directory.
func (c *Connector) UpdateGroup(ctx context.Context, groupKey string, group *model.DirectoryGroup) (*model.DirectoryGroup, error) {
	updated, err := c.directory.UpdateGroup(ctx, groupKey, group)
	if err != nil {
		return nil, err
	}
	c.caches.DirectoryGroups().Put(updated)
	return updated, nil
}

// GroupMembers lists the remote group's membership.
func (c *Connector) GroupMembers(ctx context.Context, groupKey string) ([]*model.DirectoryMember, error) {
	return c.directory.RetrieveGroupMembers(ctx, groupKey)
}

// ShouldSyncGroup reports whether the group is in scope for this connector.
func (c *Connector) ShouldSyncGroup(ctx context.Context, group *model.Group) (bool, error) {
	return c.resolver.ShouldSyncGroup(ctx, group)
}

// ShouldSyncStem reports whether the stem is in scope for this connector.
func (c *Connector) ShouldSyncStem(ctx context.Context, stem *model.Stem) (bool, error) {
	return c.resolver.ShouldSyncStem(ctx, stem)
}

// CacheSyncedObjects bulk-loads the sync decision cache.
func (c *Connector) CacheSyncedObjects(ctx context.Context, fullyPopulate bool) error {
	return c.resolver.CacheSyncedObjects(ctx, fullyPopulate)
}

// Forget drops the memoized sync decision for a node.
func (c *Connector) Forget(name string) {
	c.resolver.Forget(name)
}

// ForgetSubtree drops the sync decisions for a stem and everything under it.
func (c *Connector) ForgetSubtree(stemName string) {
	c.resolver.ForgetSubtree(stemName)
}

// SyncedObjects returns a snapshot of the decision cache for diagnostics.
func (c *Connector) SyncedObjects() map[string]bool {
	return c.resolver.Decisions()
}

// AddressFormatter exposes the formatter in use.
func (c *Connector) AddressFormatter() *util.AddressFormatter {
	return c.addresses
}

// Name returns the consumer name the connector runs under.
func (c *Connector) Name() string {
	return c.name
}

// CacheStatus describes one cache for diagnostics.
type CacheStatus struct {
	Entries int  `json:"entries"`
	Expired bool `json:"expired"`
}

// CacheStatuses reports the size and expiry of every cache the connector
// consults.
func (c *Connector) CacheStatuses() map[string]CacheStatus {
	return map[string]CacheStatus{
		"directoryGroups": {Entries: c.caches.DirectoryGroups().Len(), Expired: c.caches.DirectoryGroups().IsExpired()},
		"directoryUsers":  {Entries: c.caches.DirectoryUsers().Len(), Expired: c.caches.DirectoryUsers().IsExpired()},
		"localGroups":     {Entries: c.localGroups.Len(), Expired: c.localGroups.IsExpired()},
		"localSubjects":   {Entries: c.localSubjects.Len(), Expired: c.localSubjects.IsExpired()},
	}
}

// randomPassword generates the throwaway password for a newly provisioned
// account.
func randomPassword() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
