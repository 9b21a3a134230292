// consumer/consumer.go
package consumer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/dirsync/connector"
	dirsync_errors "github.com/dev-mohitbeniwal/dirsync/errors"
	logger "github.com/dev-mohitbeniwal/dirsync/logging"
	"github.com/dev-mohitbeniwal/dirsync/model"
	"github.com/dev-mohitbeniwal/dirsync/registry"
	"github.com/dev-mohitbeniwal/dirsync/util"
)

// Event types published while processing change records.
const (
	EventGroupProvisioned  = "sync.group.provisioned"
	EventGroupDeleted      = "sync.group.deleted"
	EventGroupUpdated      = "sync.group.updated"
	EventMembershipAdded   = "sync.membership.added"
	EventMembershipRemoved = "sync.membership.removed"
)

// SyncEvent is the payload published for every applied change.
type SyncEvent struct {
	Consumer  string `json:"consumer"`
	GroupName string `json:"group_name"`
	SubjectID string `json:"subject_id,omitempty"`
	Succeeded bool   `json:"succeeded"`
	Detail    string `json:"detail,omitempty"`
}

// Checkpoint tracks the last drained changelog sequence across restarts.
type Checkpoint interface {
	Last(ctx context.Context) (int64, error)
	Advance(ctx context.Context, seq int64) error
}

// Consumer drains changelog records into the connector, one record at a
// time on a single goroutine. A failed record is logged with the connector's
// identity and skipped; it never halts the run or crashes the process.
type Consumer struct {
	connector  *connector.Connector
	registry   registry.Registry
	eventBus   *util.EventBus
	checkpoint Checkpoint
	batchSize  int
}

func New(conn *connector.Connector, reg registry.Registry, eventBus *util.EventBus) *Consumer {
	return &Consumer{
		connector: conn,
		registry:  reg,
		eventBus:  eventBus,
		batchSize: 100,
	}
}

// WithCheckpoint makes Run resume from the persisted sequence instead of
// starting over from the beginning of the changelog.
func (c *Consumer) WithCheckpoint(checkpoint Checkpoint) *Consumer {
	c.checkpoint = checkpoint
	return c
}

// Run polls the registry changelog until ctx is cancelled, draining one
// batch per tick. Batches are applied in sequence order and the checkpoint
// advances past a batch only after every record in it was attempted.
func (c *Consumer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Changelog consumer started",
		zap.String("consumer", c.connector.Name()),
		zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Changelog consumer stopped",
				zap.String("consumer", c.connector.Name()))
			return
		case <-ticker.C:
			if err := c.drain(ctx); err != nil {
				logger.Error("Failed to drain the changelog",
					zap.Error(err),
					zap.String("consumer", c.connector.Name()))
			}
		}
	}
}

// drain pulls changelog batches after the checkpointed sequence until the
// registry runs dry. The checkpoint advances past every record in a batch,
// including ones that failed, so a failed record is never retried on a later
// drain; the failure log is the only trace it leaves.
func (c *Consumer) drain(ctx context.Context) error {
	var last int64
	if c.checkpoint != nil {
		var err error
		if last, err = c.checkpoint.Last(ctx); err != nil {
			return err
		}
	}

	for {
		entries, err := c.registry.ChangeLogEntries(ctx, last, c.batchSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		c.Process(ctx, entries)

		last = entries[len(entries)-1].Sequence
		if c.checkpoint != nil {
			if err := c.checkpoint.Advance(ctx, last); err != nil {
				return err
			}
		}

		if len(entries) < c.batchSize {
			return nil
		}
	}
}

// Process applies the change records in order and returns the number that
// were fully processed (applied or legitimately skipped as out of scope).
// Records that fail are logged and left behind permanently; processing moves
// on so one bad record cannot wedge the changelog.
func (c *Consumer) Process(ctx context.Context, entries []model.ChangeLogEntry) int {
	processed := 0

	for _, entry := range entries {
		if err := c.processEntry(ctx, entry); err != nil {
			logger.Error("Failed to process change record",
				zap.Error(err),
				zap.String("consumer", c.connector.Name()),
				zap.Int64("sequence", entry.Sequence),
				zap.String("category", string(entry.Category)))
			continue
		}
		processed++
	}

	logger.Info("Changelog batch processed",
		zap.String("consumer", c.connector.Name()),
		zap.Int("records", len(entries)),
		zap.Int("processed", processed))
	return processed
}

func (c *Consumer) processEntry(ctx context.Context, entry model.ChangeLogEntry) error {
	switch entry.Category {
	case model.ChangeGroupAdd:
		return c.onGroupAdd(ctx, entry)
	case model.ChangeGroupUpdate:
		return c.onGroupUpdate(ctx, entry)
	case model.ChangeGroupDelete:
		return c.onGroupDelete(ctx, entry)
	case model.ChangeMembershipAdd:
		return c.onMembershipAdd(ctx, entry)
	case model.ChangeMembershipDelete:
		return c.onMembershipDelete(ctx, entry)
	case model.ChangeSyncAssigned:
		return c.onSyncAssigned(ctx, entry)
	case model.ChangeSyncUnassigned:
		return c.onSyncUnassigned(ctx, entry)
	default:
		logger.Debug("Ignoring change record category",
			zap.String("consumer", c.connector.Name()),
			zap.String("category", string(entry.Category)))
		return nil
	}
}

// inScope resolves sync eligibility from just the group name, which is all a
// change record carries.
func (c *Consumer) inScope(ctx context.Context, groupName string) (bool, error) {
	return c.connector.ShouldSyncGroup(ctx, &model.Group{Name: groupName})
}

func (c *Consumer) onGroupAdd(ctx context.Context, entry model.ChangeLogEntry) error {
	shouldSync, err := c.inScope(ctx, entry.GroupName)
	if err != nil {
		return err
	}
	if !shouldSync {
		return nil
	}

	group, err := c.connector.FetchLocalGroup(ctx, entry.GroupName)
	if err != nil {
		return err
	}
	if group == nil {
		return fmt.Errorf("%w: %s", dirsync_errors.ErrGroupNotFound, entry.GroupName)
	}

	if err := c.connector.CreateGroupIfNecessary(ctx, group); err != nil {
		return err
	}

	c.publish(ctx, EventGroupProvisioned, SyncEvent{
		Consumer:  c.connector.Name(),
		GroupName: entry.GroupName,
		Succeeded: true,
	})
	return nil
}

func (c *Consumer) onGroupUpdate(ctx context.Context, entry model.ChangeLogEntry) error {
	shouldSync, err := c.inScope(ctx, entry.GroupName)
	if err != nil {
		return err
	}
	if !shouldSync {
		return nil
	}

	group, err := c.connector.FetchLocalGroup(ctx, entry.GroupName)
	if err != nil {
		return err
	}
	if group == nil {
		return fmt.Errorf("%w: %s", dirsync_errors.ErrGroupNotFound, entry.GroupName)
	}

	groupKey := c.connector.AddressFormatter().QualifyGroupAddress(group.Name)
	if _, err := c.connector.UpdateGroup(ctx, groupKey, &model.DirectoryGroup{
		Email:       groupKey,
		Name:        group.DisplayExtension,
		Description: group.Description,
	}); err != nil {
		return err
	}

	c.publish(ctx, EventGroupUpdated, SyncEvent{
		Consumer:  c.connector.Name(),
		GroupName: entry.GroupName,
		Succeeded: true,
	})
	return nil
}

func (c *Consumer) onGroupDelete(ctx context.Context, entry model.ChangeLogEntry) error {
	shouldSync, err := c.inScope(ctx, entry.GroupName)
	if err != nil {
		return err
	}
	if !shouldSync {
		return nil
	}

	if err := c.connector.DeleteGroupByName(ctx, entry.GroupName); err != nil {
		return err
	}

	c.publish(ctx, EventGroupDeleted, SyncEvent{
		Consumer:  c.connector.Name(),
		GroupName: entry.GroupName,
		Succeeded: true,
	})
	return nil
}

func (c *Consumer) onMembershipAdd(ctx context.Context, entry model.ChangeLogEntry) error {
	shouldSync, err := c.inScope(ctx, entry.GroupName)
	if err != nil {
		return err
	}
	if !shouldSync {
		return nil
	}

	group, err := c.connector.FetchLocalGroup(ctx, entry.GroupName)
	if err != nil {
		return err
	}
	if group == nil {
		return fmt.Errorf("%w: %s", dirsync_errors.ErrGroupNotFound, entry.GroupName)
	}

	// Creating the group also provisions its current membership, which
	// covers the new member on the first sync of a group.
	groupKey := c.connector.AddressFormatter().QualifyGroupAddress(group.Name)
	directoryGroup := c.connector.FetchDirectoryGroup(ctx, groupKey)
	if directoryGroup == nil {
		return c.connector.CreateGroupIfNecessary(ctx, group)
	}

	subject, err := c.connector.FetchLocalSubject(ctx, entry.SourceID, entry.SubjectID)
	if err != nil {
		return err
	}
	if subject == nil {
		return fmt.Errorf("%w: %s/%s", dirsync_errors.ErrSubjectNotFound, entry.SourceID, entry.SubjectID)
	}

	userKey := c.connector.AddressFormatter().QualifySubjectAddress(subject.ID)
	user := c.connector.FetchDirectoryUser(ctx, userKey)
	if user == nil {
		user, err = c.connector.CreateUser(ctx, subject)
		if err != nil {
			return err
		}
	}
	if user == nil {
		// Provisioning disabled and no existing account; nothing to add.
		return nil
	}

	if err := c.connector.AddMember(ctx, directoryGroup, user, model.RoleMember); err != nil {
		return err
	}

	c.publish(ctx, EventMembershipAdded, SyncEvent{
		Consumer:  c.connector.Name(),
		GroupName: entry.GroupName,
		SubjectID: entry.SubjectID,
		Succeeded: true,
	})
	return nil
}

func (c *Consumer) onMembershipDelete(ctx context.Context, entry model.ChangeLogEntry) error {
	shouldSync, err := c.inScope(ctx, entry.GroupName)
	if err != nil {
		return err
	}
	if !shouldSync {
		return nil
	}

	subject, err := c.connector.FetchLocalSubject(ctx, entry.SourceID, entry.SubjectID)
	if err != nil {
		return err
	}
	if subject == nil {
		return fmt.Errorf("%w: %s/%s", dirsync_errors.ErrSubjectNotFound, entry.SourceID, entry.SubjectID)
	}

	if err := c.connector.RemoveMembership(ctx, entry.GroupName, subject); err != nil {
		return err
	}

	c.publish(ctx, EventMembershipRemoved, SyncEvent{
		Consumer:  c.connector.Name(),
		GroupName: entry.GroupName,
		SubjectID: entry.SubjectID,
		Succeeded: true,
	})
	return nil
}

// onSyncAssigned handles the marker attribute being assigned to a group or
// stem. The memoized decision for the affected subtree is stale, so it is
// dropped before re-resolving.
func (c *Consumer) onSyncAssigned(ctx context.Context, entry model.ChangeLogEntry) error {
	if entry.GroupName != "" {
		c.connector.Forget(entry.GroupName)
		return c.onGroupAdd(ctx, model.ChangeLogEntry{
			Sequence:  entry.Sequence,
			Category:  model.ChangeGroupAdd,
			GroupName: entry.GroupName,
		})
	}

	c.connector.ForgetSubtree(entry.StemName)
	groups, err := c.registry.ChildGroups(ctx, entry.StemName, registry.ScopeSub)
	if err != nil {
		return err
	}
	for _, group := range groups {
		if err := c.connector.CreateGroupIfNecessary(ctx, group); err != nil {
			return err
		}
	}
	return nil
}

// onSyncUnassigned drops stale decisions and applies the deletion policy to
// groups that fell out of scope.
func (c *Consumer) onSyncUnassigned(ctx context.Context, entry model.ChangeLogEntry) error {
	if entry.GroupName != "" {
		c.connector.Forget(entry.GroupName)
		return c.retireIfOutOfScope(ctx, entry.GroupName)
	}

	c.connector.ForgetSubtree(entry.StemName)
	groups, err := c.registry.ChildGroups(ctx, entry.StemName, registry.ScopeSub)
	if err != nil {
		return err
	}
	for _, group := range groups {
		if err := c.retireIfOutOfScope(ctx, group.Name); err != nil {
			return err
		}
	}
	return nil
}

func (c *Consumer) retireIfOutOfScope(ctx context.Context, groupName string) error {
	shouldSync, err := c.inScope(ctx, groupName)
	if err != nil {
		return err
	}
	if shouldSync {
		return nil
	}

	if err := c.connector.DeleteGroupByName(ctx, groupName); err != nil {
		return err
	}

	c.publish(ctx, EventGroupDeleted, SyncEvent{
		Consumer:  c.connector.Name(),
		GroupName: groupName,
		Succeeded: true,
	})
	return nil
}

func (c *Consumer) publish(ctx context.Context, eventType string, event SyncEvent) {
	if c.eventBus == nil {
		return
	}
	c.eventBus.Publish(ctx, eventType, event)
}
