// test/mock/registry.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dev-mohitbeniwal/dirsync/model"
	"github.com/dev-mohitbeniwal/dirsync/registry"
)

// MockRegistry is a mock implementation of registry.Registry
type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) FindGroup(ctx context.Context, name string) (*model.Group, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Group), args.Error(1)
}

func (m *MockRegistry) FindStem(ctx context.Context, name string) (*model.Stem, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Stem), args.Error(1)
}

func (m *MockRegistry) FindSubject(ctx context.Context, sourceID, subjectID string) (*model.Subject, error) {
	args := m.Called(ctx, sourceID, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subject), args.Error(1)
}

func (m *MockRegistry) FindSyncMarker(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *MockRegistry) HasGroupAssignment(ctx context.Context, groupName, markerID string) (bool, error) {
	args := m.Called(ctx, groupName, markerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRegistry) HasStemAssignment(ctx context.Context, stemName, markerID string) (bool, error) {
	args := m.Called(ctx, stemName, markerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRegistry) StemsWithAssignment(ctx context.Context, markerID string) ([]*model.Stem, error) {
	args := m.Called(ctx, markerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Stem), args.Error(1)
}

func (m *MockRegistry) GroupsWithAssignment(ctx context.Context, markerID string) ([]*model.Group, error) {
	args := m.Called(ctx, markerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Group), args.Error(1)
}

func (m *MockRegistry) ChildGroups(ctx context.Context, stemName string, scope registry.ChildScope) ([]*model.Group, error) {
	args := m.Called(ctx, stemName, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Group), args.Error(1)
}

func (m *MockRegistry) GroupMembers(ctx context.Context, groupName string) ([]model.Member, error) {
	args := m.Called(ctx, groupName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Member), args.Error(1)
}

func (m *MockRegistry) ChangeLogEntries(ctx context.Context, afterSequence int64, limit int) ([]model.ChangeLogEntry, error) {
	args := m.Called(ctx, afterSequence, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ChangeLogEntry), args.Error(1)
}
