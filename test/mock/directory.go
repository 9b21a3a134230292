// test/mock/directory.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dev-mohitbeniwal/dirsync/model"
)

// MockDirectoryClient is a mock implementation of directory.Client
type MockDirectoryClient struct {
	mock.Mock
}

func (m *MockDirectoryClient) RetrieveAllUsers(ctx context.Context) ([]*model.DirectoryUser, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.DirectoryUser), args.Error(1)
}

func (m *MockDirectoryClient) RetrieveAllGroups(ctx context.Context) ([]*model.DirectoryGroup, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.DirectoryGroup), args.Error(1)
}

func (m *MockDirectoryClient) RetrieveUser(ctx context.Context, userKey string) (*model.DirectoryUser, error) {
	args := m.Called(ctx, userKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DirectoryUser), args.Error(1)
}

func (m *MockDirectoryClient) RetrieveGroup(ctx context.Context, groupKey string) (*model.DirectoryGroup, error) {
	args := m.Called(ctx, groupKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DirectoryGroup), args.Error(1)
}

func (m *MockDirectoryClient) AddUser(ctx context.Context, user *model.DirectoryUser) (*model.DirectoryUser, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DirectoryUser), args.Error(1)
}

func (m *MockDirectoryClient) AddGroup(ctx context.Context, group *model.DirectoryGroup) (*model.DirectoryGroup, error) {
	args := m.Called(ctx, group)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DirectoryGroup), args.Error(1)
}

func (m *MockDirectoryClient) UpdateGroup(ctx context.Context, groupKey string, group *model.DirectoryGroup) (*model.DirectoryGroup, error) {
	args := m.Called(ctx, groupKey, group)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DirectoryGroup), args.Error(1)
}

func (m *MockDirectoryClient) RemoveGroup(ctx context.Context, groupKey string) error {
	args := m.Called(ctx, groupKey)
	return args.Error(0)
}

func (m *MockDirectoryClient) AddGroupMember(ctx context.Context, groupKey string, member *model.DirectoryMember) error {
	args := m.Called(ctx, groupKey, member)
	return args.Error(0)
}

func (m *MockDirectoryClient) RemoveGroupMember(ctx context.Context, groupKey, userKey string) error {
	args := m.Called(ctx, groupKey, userKey)
	return args.Error(0)
}

func (m *MockDirectoryClient) RetrieveGroupMembers(ctx context.Context, groupKey string) ([]*model.DirectoryMember, error) {
	args := m.Called(ctx, groupKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.DirectoryMember), args.Error(1)
}

func (m *MockDirectoryClient) RetrieveGroupSettings(ctx context.Context, groupKey string) (*model.GroupSettings, error) {
	args := m.Called(ctx, groupKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GroupSettings), args.Error(1)
}

func (m *MockDirectoryClient) UpdateGroupSettings(ctx context.Context, groupKey string, settings *model.GroupSettings) (*model.GroupSettings, error) {
	args := m.Called(ctx, groupKey, settings)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GroupSettings), args.Error(1)
}
