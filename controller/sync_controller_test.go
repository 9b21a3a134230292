// controller/sync_controller_test.go
package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dev-mohitbeniwal/dirsync/audit"
	"github.com/dev-mohitbeniwal/dirsync/cache"
	"github.com/dev-mohitbeniwal/dirsync/config"
	"github.com/dev-mohitbeniwal/dirsync/connector"
	"github.com/dev-mohitbeniwal/dirsync/model"
	"github.com/dev-mohitbeniwal/dirsync/test/mock"
)

type fixture struct {
	reg          *mock.MockRegistry
	auditService *mock.MockAuditService
	engine       *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	gin.SetMode(gin.TestMode)

	props := &config.SyncProperties{
		ConsumerName:                "test-consumer",
		Domain:                      "example.edu",
		GroupIdentifierExpression:   "${groupPath}",
		SubjectIdentifierExpression: "${subjectId}",
		SyncMarkerName:              "etc:attribute:dirsync:syncToDirectory",
		DirectoryUserCacheValidity:  time.Hour,
		DirectoryGroupCacheValidity: time.Hour,
		LocalCacheValidity:          time.Hour,
		HandleDeletedGroup:          config.DeletionPolicyArchive,
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

	auditService := new(mock.MockAuditService)

	engine := gin.New()
	NewSyncController(conn, auditService).RegisterRoutes(engine.Group("/api/v1"))
	return &fixture{reg: reg, auditService: auditService, engine: engine}
}

func (f *fixture) request(t *testing.T, method, target string) *httptest.ResponseRecorder {
	req, err := http.NewRequest(method, target, nil)
	require.NoError(t, err)
	recorder := httptest.NewRecorder()
	f.engine.ServeHTTP(recorder, req)
	return recorder
}

func TestGetEligibility(t *testing.T) {
	f := newFixture(t)
	f.reg.On("HasGroupAssignment", testifymock.Anything, "science:physics:majors", "marker-1").
		Return(true, nil)

	recorder := f.request(t, http.MethodGet, "/api/v1/sync/eligibility/science:physics:majors")
	require.Equal(t, http.StatusOK, recorder.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "science:physics:majors", body["name"])
	assert.Equal(t, true, body["shouldSync"])
}

func TestGetDecisionsReflectsResolvedGroups(t *testing.T) {
	f := newFixture(t)
	f.reg.On("HasGroupAssignment", testifymock.Anything, "science:physics:majors", "marker-1").
		Return(true, nil)

	f.request(t, http.MethodGet, "/api/v1/sync/eligibility/science:physics:majors")
	recorder := f.request(t, http.MethodGet, "/api/v1/sync/decisions")
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Consumer  string          `json:"consumer"`
		Decisions map[string]bool `json:"decisions"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "test-consumer", body.Consumer)
	assert.True(t, body.Decisions["science:physics:majors"])
}

func TestGetCacheStatuses(t *testing.T) {
	f := newFixture(t)

	recorder := f.request(t, http.MethodGet, "/api/v1/sync/caches")
	require.Equal(t, http.StatusOK, recorder.Code)

	var body map[string]connector.CacheStatus
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Contains(t, body, "directoryGroups")
	assert.Contains(t, body, "localSubjects")
}

func TestRefreshSeedsDecisionCache(t *testing.T) {
	f := newFixture(t)
	f.reg.On("StemsWithAssignment", testifymock.Anything, "marker-1").
		Return([]*model.Stem{{Name: "science"}}, nil)
	f.reg.On("GroupsWithAssignment", testifymock.Anything, "marker-1").
		Return([]*model.Group{{Name: "arts:choir"}}, nil)

	recorder := f.request(t, http.MethodPost, "/api/v1/sync/refresh")
	require.Equal(t, http.StatusOK, recorder.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, float64(2), body["decisions"])
	assert.Equal(t, false, body["fullyPopulated"])
}

func TestQueryAuditDefaultsWindow(t *testing.T) {
	f := newFixture(t)
	f.auditService.On("QueryEntries",
		testifymock.Anything, testifymock.Anything, testifymock.Anything, "", "").
		Return([]audit.Entry{{Action: "sync.group.provisioned"}}, nil).Once()

	recorder := f.request(t, http.MethodGet, "/api/v1/sync/audit")
	require.Equal(t, http.StatusOK, recorder.Code)

	var entries []audit.Entry
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "sync.group.provisioned", entries[0].Action)
	f.auditService.AssertExpectations(t)
}

func TestQueryAuditRejectsBadTimestamp(t *testing.T) {
	f := newFixture(t)

	recorder := f.request(t, http.MethodGet, "/api/v1/sync/audit?from=yesterday")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
