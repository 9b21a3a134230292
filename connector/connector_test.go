// connector/connector_test.go
package connector

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
	"github.com/dev-mohitbeniwal/dirsync/directory"
	"github.com/dev-mohitbeniwal/dirsync/model"
	"github.com/dev-mohitbeniwal/dirsync/test/mock"
)

type fixture struct {
	dir  *mock.MockDirectoryClient
	reg  *mock.MockRegistry
	conn *Connector
}

// newFixture initializes a connector against empty directory populations.
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
		HandleDeletedGroup:          config.DeletionPolicyArchive,
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

	conn := New(props, dir, cache.NewManager(), reg)
	require.NoError(t, conn.Initialize(context.Background()))
	return &fixture{dir: dir, reg: reg, conn: conn}
}

func notFound() *directory.Error {
	return &directory.Error{StatusCode: http.StatusNotFound, Message: "not found"}
}

func TestFetchDirectoryGroupBackfillsCache(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	remote := &model.DirectoryGroup{Email: "science-physics-majors@example.edu"}
	f.dir.On("RetrieveGroup", testifymock.Anything, remote.Email).
		Return(remote, nil).Once()

	group := f.conn.FetchDirectoryGroup(ctx, remote.Email)
	require.NotNil(t, group)

	// Second fetch is served from the cache without a remote read.
	group = f.conn.FetchDirectoryGroup(ctx, remote.Email)
	require.NotNil(t, group)
	f.dir.AssertNumberOfCalls(t, "RetrieveGroup", 1)
}

func TestFetchDirectoryGroupAbsentReturnsNil(t *testing.T) {
	f := newFixture(t, nil)

	f.dir.On("RetrieveGroup", testifymock.Anything, "nobody@example.edu").
		Return(nil, notFound())

	group := f.conn.FetchDirectoryGroup(context.Background(), "nobody@example.edu")
	assert.Nil(t, group)
}

func TestFetchDirectoryUserTransportFailureSurfacesAsAbsence(t *testing.T) {
	f := newFixture(t, nil)

	f.dir.On("RetrieveUser", testifymock.Anything, "ada@example.edu").
		Return(nil, &directory.Error{StatusCode: http.StatusInternalServerError, Message: "boom"})

	user := f.conn.FetchDirectoryUser(context.Background(), "ada@example.edu")
	assert.Nil(t, user)
}

func TestFetchLocalGroupReadsThroughRegistryOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.reg.On("FindGroup", testifymock.Anything, "science:physics:majors").
		Return(&model.Group{Name: "science:physics:majors"}, nil).Once()

	group, err := f.conn.FetchLocalGroup(ctx, "science:physics:majors")
	require.NoError(t, err)
	require.NotNil(t, group)

	group, err = f.conn.FetchLocalGroup(ctx, "science:physics:majors")
	require.NoError(t, err)
	require.NotNil(t, group)
	f.reg.AssertNumberOfCalls(t, "FindGroup", 1)
}

func TestCreateUserDisabledProvisioning(t *testing.T) {
	f := newFixture(t, nil)

	user, err := f.conn.CreateUser(context.Background(), &model.Subject{ID: "ada"})
	require.NoError(t, err)
	assert.Nil(t, user)
	f.dir.AssertNotCalled(t, "AddUser", testifymock.Anything, testifymock.Anything)
}

func TestCreateUserSimpleNaming(t *testing.T) {
	f := newFixture(t, func(p *config.SyncProperties) {
		p.ProvisionUsers = true
		p.IncludeUserInGlobalAddressList = true
	})

	var request *model.DirectoryUser
	f.dir.On("AddUser", testifymock.Anything, testifymock.Anything).
		Run(func(args testifymock.Arguments) {
			request = args.Get(1).(*model.DirectoryUser)
		}).
		Return(&model.DirectoryUser{PrimaryEmail: "ada@example.edu"}, nil)

	subject := &model.Subject{ID: "ada", Name: "Ada King Lovelace"}
	created, err := f.conn.CreateUser(context.Background(), subject)
	require.NoError(t, err)
	require.NotNil(t, created)

	require.NotNil(t, request)
	assert.Equal(t, "ada@example.edu", request.PrimaryEmail)
	assert.Equal(t, "Ada", request.Name.GivenName)
	assert.Equal(t, "Lovelace", request.Name.FamilyName)
	assert.Equal(t, "Ada King Lovelace", request.Name.FullName)
	assert.True(t, request.IncludeInGlobalAddressList)
	assert.Len(t, request.Password, 40)
}

func TestCreateUserPrefersEmailAttribute(t *testing.T) {
	f := newFixture(t, func(p *config.SyncProperties) {
		p.ProvisionUsers = true
		p.SimpleSubjectNaming = false
		p.SubjectGivenNameField = "givenName"
		p.SubjectSurnameField = "sn"
	})

	var request *model.DirectoryUser
	f.dir.On("AddUser", testifymock.Anything, testifymock.Anything).
		Run(func(args testifymock.Arguments) {
			request = args.Get(1).(*model.DirectoryUser)
		}).
		Return(&model.DirectoryUser{PrimaryEmail: "ada.lovelace@example.edu"}, nil)

	subject := &model.Subject{
		ID:   "ada",
		Name: "Ada Lovelace",
		Attributes: map[string]string{
			"email":     "ada.lovelace@example.edu",
			"givenName": "Ada",
			"sn":        "Lovelace",
		},
	}
	_, err := f.conn.CreateUser(context.Background(), subject)
	require.NoError(t, err)

	require.NotNil(t, request)
	assert.Equal(t, "ada.lovelace@example.edu", request.PrimaryEmail)
	assert.Equal(t, "Ada", request.Name.GivenName)
	assert.Equal(t, "Lovelace", request.Name.FamilyName)
}

func TestCreateGroupIfNecessaryProvisionsGroupAndMembers(t *testing.T) {
	f := newFixture(t, func(p *config.SyncProperties) {
		p.ProvisionUsers = true
		p.DefaultGroupSettings = model.GroupSettings{WhoCanInvite: "ALL_MANAGERS_CAN_INVITE"}
	})
	ctx := context.Background()

	groupKey := "science-physics-majors@example.edu"
	created := &model.DirectoryGroup{Email: groupKey, Name: "Physics Majors"}

	f.dir.On("RetrieveGroup", testifymock.Anything, groupKey).
		Return(nil, notFound()).Once()
	f.dir.On("AddGroup", testifymock.Anything, testifymock.MatchedBy(func(g *model.DirectoryGroup) bool {
		return g.Email == groupKey && g.Name == "Physics Majors"
	})).Return(created, nil).Once()
	f.dir.On("UpdateGroupSettings", testifymock.Anything, groupKey, testifymock.MatchedBy(func(s *model.GroupSettings) bool {
		return s.WhoCanInvite == "ALL_MANAGERS_CAN_INVITE"
	})).Return(&model.GroupSettings{}, nil).Once()

	f.reg.On("GroupMembers", testifymock.Anything, "science:physics:majors").
		Return([]model.Member{
			{SubjectID: "ada", SourceID: "ldap", Type: model.MemberTypePerson},
			{SubjectID: "science:tutors", SourceID: "g:gsa", Type: model.MemberTypeGroup},
		}, nil).Once()
	f.reg.On("FindSubject", testifymock.Anything, "ldap", "ada").
		Return(&model.Subject{ID: "ada", SourceID: "ldap", Name: "Ada Lovelace"}, nil).Once()

	f.dir.On("RetrieveUser", testifymock.Anything, "ada@example.edu").
		Return(nil, notFound()).Once()
	f.dir.On("AddUser", testifymock.Anything, testifymock.Anything).
		Return(&model.DirectoryUser{PrimaryEmail: "ada@example.edu"}, nil).Once()
	f.dir.On("AddGroupMember", testifymock.Anything, groupKey, testifymock.MatchedBy(func(m *model.DirectoryMember) bool {
		return m.Email == "ada@example.edu" && m.Role == model.RoleMember
	})).Return(nil).Once()

	local := &model.Group{
		Name:             "science:physics:majors",
		DisplayExtension: "Physics Majors",
		Description:      "Declared physics majors",
	}
	require.NoError(t, f.conn.CreateGroupIfNecessary(ctx, local))

	// Group-type members are skipped; only the person was added.
	f.dir.AssertNumberOfCalls(t, "AddGroupMember", 1)
	f.dir.AssertExpectations(t)
}

func TestCreateGroupIfNecessaryRestoresArchivedGroup(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	groupKey := "science-physics-majors@example.edu"
	f.dir.On("RetrieveGroup", testifymock.Anything, groupKey).
		Return(&model.DirectoryGroup{Email: groupKey}, nil).Once()
	f.dir.On("RetrieveGroupSettings", testifymock.Anything, groupKey).
		Return(&model.GroupSettings{ArchiveOnly: true}, nil).Once()
	f.dir.On("UpdateGroupSettings", testifymock.Anything, groupKey, testifymock.MatchedBy(func(s *model.GroupSettings) bool {
		return !s.ArchiveOnly
	})).Return(&model.GroupSettings{}, nil).Once()

	require.NoError(t, f.conn.CreateGroupIfNecessary(ctx, &model.Group{Name: "science:physics:majors"}))

	f.dir.AssertNotCalled(t, "AddGroup", testifymock.Anything, testifymock.Anything)
	f.dir.AssertExpectations(t)
}

func TestDeleteGroupArchivePolicy(t *testing.T) {
	f := newFixture(t, nil)
	groupKey := "science-physics-majors@example.edu"

	f.dir.On("RetrieveGroupSettings", testifymock.Anything, groupKey).
		Return(&model.GroupSettings{}, nil).Once()
	f.dir.On("UpdateGroupSettings", testifymock.Anything, groupKey, testifymock.MatchedBy(func(s *model.GroupSettings) bool {
		return s.ArchiveOnly
	})).Return(&model.GroupSettings{}, nil).Once()

	require.NoError(t, f.conn.DeleteGroupByName(context.Background(), "science:physics:majors"))
	f.dir.AssertNotCalled(t, "RemoveGroup", testifymock.Anything, testifymock.Anything)
	f.dir.AssertExpectations(t)
}

func TestDeleteGroupDeletePolicy(t *testing.T) {
	f := newFixture(t, func(p *config.SyncProperties) {
		p.HandleDeletedGroup = config.DeletionPolicyDelete
	})
	groupKey := "science-physics-majors@example.edu"

	f.dir.On("RemoveGroup", testifymock.Anything, groupKey).Return(nil).Once()

	require.NoError(t, f.conn.DeleteGroupByName(context.Background(), "science:physics:majors"))
	f.dir.AssertExpectations(t)
}

func TestDeleteGroupIgnorePolicy(t *testing.T) {
	f := newFixture(t, func(p *config.SyncProperties) {
		p.HandleDeletedGroup = config.DeletionPolicyIgnore
	})

	require.NoError(t, f.conn.DeleteGroupByName(context.Background(), "science:physics:majors"))
	f.dir.AssertNotCalled(t, "RemoveGroup", testifymock.Anything, testifymock.Anything)
	f.dir.AssertNotCalled(t, "UpdateGroupSettings", testifymock.Anything, testifymock.Anything, testifymock.Anything)
}

func TestDeleteGroupDropsMemoizedDecision(t *testing.T) {
	f := newFixture(t, func(p *config.SyncProperties) {
		p.HandleDeletedGroup = config.DeletionPolicyIgnore
	})
	ctx := context.Background()

	f.reg.On("HasGroupAssignment", testifymock.Anything, "science:physics:majors", "marker-1").
		Return(true, nil)

	ok, err := f.conn.ShouldSyncGroup(ctx, &model.Group{Name: "science:physics:majors"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, f.conn.SyncedObjects(), "science:physics:majors")

	require.NoError(t, f.conn.DeleteGroupByName(ctx, "science:physics:majors"))
	assert.NotContains(t, f.conn.SyncedObjects(), "science:physics:majors")
}

func TestRemoveMembershipNeverDeprovisions(t *testing.T) {
	f := newFixture(t, func(p *config.SyncProperties) {
		p.DeprovisionUsers = true
	})

	f.dir.On("RemoveGroupMember", testifymock.Anything,
		"science-physics-majors@example.edu", "ada@example.edu").Return(nil).Once()

	subject := &model.Subject{ID: "ada", SourceID: "ldap"}
	require.NoError(t, f.conn.RemoveMembership(context.Background(), "science:physics:majors", subject))

	// The account itself is untouched even with deprovisioning requested.
	f.dir.AssertExpectations(t)
}

func TestPopulateGroupCacheSkipsWhenFresh(t *testing.T) {
	f := newFixture(t, nil)

	// Initialize already seeded both caches once; a fresh cache is not
	// re-enumerated.
	f.conn.PopulateGroupCache(context.Background())
	f.conn.PopulateUserCache(context.Background())
	f.dir.AssertNumberOfCalls(t, "RetrieveAllGroups", 1)
	f.dir.AssertNumberOfCalls(t, "RetrieveAllUsers", 1)
}

func TestRandomPasswordLengthAndUniqueness(t *testing.T) {
	first, err := randomPassword()
	require.NoError(t, err)
	second, err := randomPassword()
	require.NoError(t, err)

	assert.Len(t, first, 40)
	assert.NotEqual(t, first, second)
}

func TestCacheStatuses(t *testing.T) {
	f := newFixture(t, nil)

	statuses := f.conn.CacheStatuses()
	require.Contains(t, statuses, "directoryGroups")
	require.Contains(t, statuses, "directoryUsers")
	require.Contains(t, statuses, "localGroups")
	require.Contains(t, statuses, "localSubjects")
	assert.False(t, statuses["directoryGroups"].Expired)
	assert.Equal(t, 0, statuses["localGroups"].Entries)
}
