// consumer/consumer_test.go
package consumer

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dev-mohitbeniwal/dirsync/cache"
	"github.com/dev-mohitbeniwal/dirsync/config"
	"github.com/dev-mohitbeniwal/dirsync/connector"
	"github.com/dev-mohitbeniwal/dirsync/directory"
	"github.com/dev-mohitbeniwal/dirsync/model"
	"github.com/dev-mohitbeniwal/dirsync/registry"
	"github.com/dev-mohitbeniwal/dirsync/test/mock"
)

type fixture struct {
	dir      *mock.MockDirectoryClient
	reg      *mock.MockRegistry
	consumer *Consumer
}

func newFixture(t *testing.T, mutate func(*config.SyncProperties)) *fixture {
	props := &config.SyncProperties{
		ConsumerName:                "test-consumer",
		Domain:                      "example.edu",
		GroupIdentifierExpression:   "${groupPath}",
		SubjectIdentifierExpression: "${subjectId}",
		SyncMarkerName:              "etc:attribute:dirsync:syncToDirectory",
		DirectoryUserCacheValidity:  time.Hour,
		DirectoryGroupCacheValidity: time.Hour,
		LocalCacheValidity:          time.Hour,
		SimpleSubjectNaming:         true,
		HandleDeletedGroup:          config.DeletionPolicyDelete,
	}
	if mutate != nil {
		mutate(props)
	}

	dir := new(mock.MockDirectoryClient)
	reg := new(mock.MockRegistry)
	reg.On("FindSyncMarker", testifymock.Anything, props.SyncMarkerName).
		Return("marker-1", nil)
	dir.On("RetrieveAllUsers", testifymock.Anything).
		Return([]*model.DirectoryUser{}, nil)
	dir.On("RetrieveAllGroups", testifymock.Anything).
		Return([]*model.DirectoryGroup{}, nil)

	conn := connector.New(props, dir, cache.NewManager(), reg)
	require.NoError(t, conn.Initialize(context.Background()))
	return &fixture{dir: dir, reg: reg, consumer: New(conn, reg, nil)}
}

func notFound() *directory.Error {
	return &directory.Error{StatusCode: http.StatusNotFound, Message: "not found"}
}

// markInScope stubs the registry so groupName resolves as directly marked.
func (f *fixture) markInScope(groupName string) {
	f.reg.On("HasGroupAssignment", testifymock.Anything, groupName, "marker-1").
		Return(true, nil)
}

// markOutOfScope stubs the registry so nothing carries the marker.
func (f *fixture) markOutOfScope() {
	f.reg.On("HasGroupAssignment", testifymock.Anything, testifymock.Anything, "marker-1").
		Return(false, nil)
	f.reg.On("HasStemAssignment", testifymock.Anything, testifymock.Anything, "marker-1").
		Return(false, nil)
}

func TestProcessSkipsOutOfScopeRecords(t *testing.T) {
	f := newFixture(t, nil)
	f.markOutOfScope()

	processed := f.consumer.Process(context.Background(), []model.ChangeLogEntry{
		{Sequence: 1, Category: model.ChangeGroupAdd, GroupName: "arts:choir"},
		{Sequence: 2, Category: model.ChangeMembershipAdd, GroupName: "arts:choir", SubjectID: "ada", SourceID: "ldap"},
	})

	assert.Equal(t, 2, processed)
	f.dir.AssertNotCalled(t, "AddGroup", testifymock.Anything, testifymock.Anything)
	f.dir.AssertNotCalled(t, "AddGroupMember", testifymock.Anything, testifymock.Anything, testifymock.Anything)
}

func TestProcessGroupAddProvisionsGroup(t *testing.T) {
	f := newFixture(t, nil)
	f.markInScope("science:physics:majors")

	groupKey := "science-physics-majors@example.edu"
	f.reg.On("FindGroup", testifymock.Anything, "science:physics:majors").
		Return(&model.Group{Name: "science:physics:majors", DisplayExtension: "Physics Majors"}, nil)
	f.dir.On("RetrieveGroup", testifymock.Anything, groupKey).
		Return(nil, notFound()).Once()
	f.dir.On("AddGroup", testifymock.Anything, testifymock.Anything).
		Return(&model.DirectoryGroup{Email: groupKey}, nil).Once()
	f.dir.On("UpdateGroupSettings", testifymock.Anything, groupKey, testifymock.Anything).
		Return(&model.GroupSettings{}, nil).Once()
	f.reg.On("GroupMembers", testifymock.Anything, "science:physics:majors").
		Return([]model.Member{}, nil).Once()

	processed := f.consumer.Process(context.Background(), []model.ChangeLogEntry{
		{Sequence: 1, Category: model.ChangeGroupAdd, GroupName: "science:physics:majors"},
	})

	assert.Equal(t, 1, processed)
	f.dir.AssertExpectations(t)
}

func TestProcessContinuesPastFailedRecord(t *testing.T) {
	f := newFixture(t, nil)
	f.markInScope("science:physics:majors")
	f.markInScope("science:chemistry:majors")

	// The first record's group has vanished from the registry; the second
	// still goes through.
	f.reg.On("FindGroup", testifymock.Anything, "science:physics:majors").
		Return(nil, nil)
	f.reg.On("FindGroup", testifymock.Anything, "science:chemistry:majors").
		Return(&model.Group{Name: "science:chemistry:majors"}, nil)

	groupKey := "science-chemistry-majors@example.edu"
	f.dir.On("RetrieveGroup", testifymock.Anything, groupKey).
		Return(nil, notFound()).Once()
	f.dir.On("AddGroup", testifymock.Anything, testifymock.Anything).
		Return(&model.DirectoryGroup{Email: groupKey}, nil).Once()
	f.dir.On("UpdateGroupSettings", testifymock.Anything, groupKey, testifymock.Anything).
		Return(&model.GroupSettings{}, nil).Once()
	f.reg.On("GroupMembers", testifymock.Anything, "science:chemistry:majors").
		Return([]model.Member{}, nil).Once()

	processed := f.consumer.Process(context.Background(), []model.ChangeLogEntry{
		{Sequence: 1, Category: model.ChangeGroupAdd, GroupName: "science:physics:majors"},
		{Sequence: 2, Category: model.ChangeGroupAdd, GroupName: "science:chemistry:majors"},
	})

	assert.Equal(t, 1, processed)
	f.dir.AssertExpectations(t)
}

func TestProcessMembershipAddToExistingGroup(t *testing.T) {
	f := newFixture(t, nil)
	f.markInScope("science:physics:majors")

	groupKey := "science-physics-majors@example.edu"
	f.reg.On("FindGroup", testifymock.Anything, "science:physics:majors").
		Return(&model.Group{Name: "science:physics:majors"}, nil)
	f.dir.On("RetrieveGroup", testifymock.Anything, groupKey).
		Return(&model.DirectoryGroup{Email: groupKey}, nil).Once()
	f.reg.On("FindSubject", testifymock.Anything, "ldap", "ada").
		Return(&model.Subject{ID: "ada", SourceID: "ldap", Name: "Ada Lovelace"}, nil).Once()
	f.dir.On("RetrieveUser", testifymock.Anything, "ada@example.edu").
		Return(&model.DirectoryUser{PrimaryEmail: "ada@example.edu"}, nil).Once()
	f.dir.On("AddGroupMember", testifymock.Anything, groupKey, testifymock.MatchedBy(func(m *model.DirectoryMember) bool {
		return m.Email == "ada@example.edu" && m.Role == model.RoleMember
	})).Return(nil).Once()

	processed := f.consumer.Process(context.Background(), []model.ChangeLogEntry{
		{Sequence: 1, Category: model.ChangeMembershipAdd, GroupName: "science:physics:majors", SubjectID: "ada", SourceID: "ldap"},
	})

	assert.Equal(t, 1, processed)
	f.dir.AssertExpectations(t)
}

func TestProcessMembershipAddSkipsWhenProvisioningDisabled(t *testing.T) {
	f := newFixture(t, nil)
	f.markInScope("science:physics:majors")

	groupKey := "science-physics-majors@example.edu"
	f.reg.On("FindGroup", testifymock.Anything, "science:physics:majors").
		Return(&model.Group{Name: "science:physics:majors"}, nil)
	f.dir.On("RetrieveGroup", testifymock.Anything, groupKey).
		Return(&model.DirectoryGroup{Email: groupKey}, nil).Once()
	f.reg.On("FindSubject", testifymock.Anything, "ldap", "ada").
		Return(&model.Subject{ID: "ada", SourceID: "ldap"}, nil).Once()
	f.dir.On("RetrieveUser", testifymock.Anything, "ada@example.edu").
		Return(nil, notFound()).Once()

	processed := f.consumer.Process(context.Background(), []model.ChangeLogEntry{
		{Sequence: 1, Category: model.ChangeMembershipAdd, GroupName: "science:physics:majors", SubjectID: "ada", SourceID: "ldap"},
	})

	// No account and provisioning off: the record completes without a
	// membership write.
	assert.Equal(t, 1, processed)
	f.dir.AssertNotCalled(t, "AddGroupMember", testifymock.Anything, testifymock.Anything, testifymock.Anything)
}

func TestProcessMembershipDeleteRemovesMember(t *testing.T) {
	f := newFixture(t, nil)
	f.markInScope("science:physics:majors")

	f.reg.On("FindSubject", testifymock.Anything, "ldap", "ada").
		Return(&model.Subject{ID: "ada", SourceID: "ldap"}, nil).Once()
	f.dir.On("RemoveGroupMember", testifymock.Anything,
		"science-physics-majors@example.edu", "ada@example.edu").Return(nil).Once()

	processed := f.consumer.Process(context.Background(), []model.ChangeLogEntry{
		{Sequence: 1, Category: model.ChangeMembershipDelete, GroupName: "science:physics:majors", SubjectID: "ada", SourceID: "ldap"},
	})

	assert.Equal(t, 1, processed)
	f.dir.AssertExpectations(t)
}

func TestProcessGroupDeleteAppliesPolicy(t *testing.T) {
	f := newFixture(t, nil)
	f.markInScope("science:physics:majors")

	f.dir.On("RemoveGroup", testifymock.Anything, "science-physics-majors@example.edu").
		Return(nil).Once()

	processed := f.consumer.Process(context.Background(), []model.ChangeLogEntry{
		{Sequence: 1, Category: model.ChangeGroupDelete, GroupName: "science:physics:majors"},
	})

	assert.Equal(t, 1, processed)
	f.dir.AssertExpectations(t)
}

func TestSyncUnassignedOnStemRetiresDescendantGroups(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// The group first resolves in scope through its grandparent stem, which
	// memoizes the intermediate stems along the walk.
	f.reg.On("HasGroupAssignment", testifymock.Anything, testifymock.Anything, "marker-1").
		Return(false, nil)
	f.reg.On("HasStemAssignment", testifymock.Anything, "science", "marker-1").
		Return(true, nil).Once()
	f.reg.On("HasStemAssignment", testifymock.Anything, testifymock.Anything, "marker-1").
		Return(false, nil)

	inScope, err := f.consumer.inScope(ctx, "science:physics:majors")
	require.NoError(t, err)
	require.True(t, inScope)

	// The marker comes off the stem. With the memoized intermediate stems
	// dropped, the group re-resolves out of scope and the deletion policy
	// fires.
	f.reg.On("ChildGroups", testifymock.Anything, "science", registry.ScopeSub).
		Return([]*model.Group{{Name: "science:physics:majors"}}, nil).Once()
	f.dir.On("RemoveGroup", testifymock.Anything, "science-physics-majors@example.edu").
		Return(nil).Once()

	processed := f.consumer.Process(ctx, []model.ChangeLogEntry{
		{Sequence: 1, Category: model.ChangeSyncUnassigned, StemName: "science"},
	})

	assert.Equal(t, 1, processed)
	f.dir.AssertExpectations(t)
	f.reg.AssertExpectations(t)
}

func TestSyncAssignedOnStemDropsStaleNegativeDecisions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.reg.On("HasGroupAssignment", testifymock.Anything, testifymock.Anything, "marker-1").
		Return(false, nil)
	f.reg.On("HasStemAssignment", testifymock.Anything, "science", "marker-1").
		Return(false, nil).Once()
	f.reg.On("HasStemAssignment", testifymock.Anything, "science", "marker-1").
		Return(true, nil)
	f.reg.On("HasStemAssignment", testifymock.Anything, testifymock.Anything, "marker-1").
		Return(false, nil)

	inScope, err := f.consumer.inScope(ctx, "science:physics:majors")
	require.NoError(t, err)
	require.False(t, inScope)

	// The marker lands on the stem and every group under it is provisioned.
	groupKey := "science-physics-majors@example.edu"
	f.reg.On("ChildGroups", testifymock.Anything, "science", registry.ScopeSub).
		Return([]*model.Group{{Name: "science:physics:majors"}}, nil).Once()
	f.dir.On("RetrieveGroup", testifymock.Anything, groupKey).
		Return(nil, notFound()).Once()
	f.dir.On("AddGroup", testifymock.Anything, testifymock.Anything).
		Return(&model.DirectoryGroup{Email: groupKey}, nil).Once()
	f.dir.On("UpdateGroupSettings", testifymock.Anything, groupKey, testifymock.Anything).
		Return(&model.GroupSettings{}, nil).Once()
	f.reg.On("GroupMembers", testifymock.Anything, "science:physics:majors").
		Return([]model.Member{}, nil).Once()

	processed := f.consumer.Process(ctx, []model.ChangeLogEntry{
		{Sequence: 1, Category: model.ChangeSyncAssigned, StemName: "science"},
	})
	require.Equal(t, 1, processed)

	// The intermediate-stem decisions memoized as false are gone, so later
	// change records for the group resolve fresh instead of being skipped.
	inScope, err = f.consumer.inScope(ctx, "science:physics:majors")
	require.NoError(t, err)
	assert.True(t, inScope)
	f.dir.AssertExpectations(t)
}

func TestProcessIgnoresUnknownCategory(t *testing.T) {
	f := newFixture(t, nil)

	processed := f.consumer.Process(context.Background(), []model.ChangeLogEntry{
		{Sequence: 1, Category: "PRIVILEGE_ADD"},
	})

	assert.Equal(t, 1, processed)
}

// fakeCheckpoint keeps the drained sequence in memory.
type fakeCheckpoint struct {
	seq int64
}

func (c *fakeCheckpoint) Last(ctx context.Context) (int64, error) {
	return c.seq, nil
}

func (c *fakeCheckpoint) Advance(ctx context.Context, seq int64) error {
	c.seq = seq
	return nil
}

func TestDrainAdvancesCheckpointAcrossBatches(t *testing.T) {
	f := newFixture(t, nil)
	f.markOutOfScope()

	checkpoint := &fakeCheckpoint{seq: 10}
	f.consumer.WithCheckpoint(checkpoint)
	f.consumer.batchSize = 2

	// One full batch followed by a short one.
	f.reg.On("ChangeLogEntries", testifymock.Anything, int64(10), 2).
		Return([]model.ChangeLogEntry{
			{Sequence: 11, Category: model.ChangeGroupAdd, GroupName: "arts:choir"},
			{Sequence: 12, Category: model.ChangeGroupAdd, GroupName: "arts:band"},
		}, nil).Once()
	f.reg.On("ChangeLogEntries", testifymock.Anything, int64(12), 2).
		Return([]model.ChangeLogEntry{
			{Sequence: 13, Category: model.ChangeGroupAdd, GroupName: "arts:orchestra"},
		}, nil).Once()

	require.NoError(t, f.consumer.drain(context.Background()))
	assert.Equal(t, int64(13), checkpoint.seq)
	f.reg.AssertExpectations(t)
}

func TestDrainNoNewRecords(t *testing.T) {
	f := newFixture(t, nil)

	checkpoint := &fakeCheckpoint{seq: 42}
	f.consumer.WithCheckpoint(checkpoint)

	f.reg.On("ChangeLogEntries", testifymock.Anything, int64(42), 100).
		Return([]model.ChangeLogEntry{}, nil).Once()

	require.NoError(t, f.consumer.drain(context.Background()))
	assert.Equal(t, int64(42), checkpoint.seq)
}
