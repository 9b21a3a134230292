// controller/sync_controller.go
package controller

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dev-mohitbeniwal/dirsync/audit"
	"github.com/dev-mohitbeniwal/dirsync/connector"
	"github.com/dev-mohitbeniwal/dirsync/model"
	"github.com/dev-mohitbeniwal/dirsync/util"
	helper_util "github.com/dev-mohitbeniwal/dirsync/util/helper"
)

// SyncController exposes the connector's diagnostics: the decision cache,
// cache health, eligibility probes and the audit trail.
type SyncController struct {
	connector    *connector.Connector
	auditService audit.Service
}

func NewSyncController(conn *connector.Connector, auditService audit.Service) *SyncController {
	return &SyncController{
		connector:    conn,
		auditService: auditService,
	}
}

// RegisterRoutes registers the API routes
func (sc *SyncController) RegisterRoutes(r *gin.RouterGroup) {
	sync := r.Group("/sync")
	{
		sync.GET("/decisions", sc.GetDecisions)
		sync.GET("/caches", sc.GetCacheStatuses)
		sync.GET("/eligibility/*name", sc.GetEligibility)
		sync.POST("/refresh", sc.Refresh)
		sync.GET("/audit", sc.QueryAudit)
	}
}

// GetDecisions returns the current decision-cache contents.
func (sc *SyncController) GetDecisions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"consumer":  sc.connector.Name(),
		"decisions": sc.connector.SyncedObjects(),
	})
}

// GetCacheStatuses reports entry counts and expiry per cache.
func (sc *SyncController) GetCacheStatuses(c *gin.Context) {
	c.JSON(http.StatusOK, sc.connector.CacheStatuses())
}

// GetEligibility resolves (and memoizes) the sync decision for a group name.
func (sc *SyncController) GetEligibility(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")
	if name == "" {
		util.RespondWithError(c, http.StatusBadRequest, "Group name is required", nil)
		return
	}

	shouldSync, err := sc.connector.ShouldSyncGroup(c, &model.Group{Name: name})
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to resolve sync eligibility", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":       name,
		"shouldSync": shouldSync,
	})
}

// Refresh bulk-populates the decision cache and reseeds the directory
// caches. With ?full=true every descendant group of an in-scope stem is
// marked eagerly.
func (sc *SyncController) Refresh(c *gin.Context) {
	full := c.DefaultQuery("full", "false") == "true"

	if err := sc.connector.CacheSyncedObjects(c, full); err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to seed the decision cache", err)
		return
	}

	sc.connector.PopulateGroupCache(c)
	sc.connector.PopulateUserCache(c)

	c.JSON(http.StatusOK, gin.H{
		"consumer":       sc.connector.Name(),
		"fullyPopulated": full,
		"decisions":      len(sc.connector.SyncedObjects()),
	})
}

// QueryAudit searches the reconciliation audit trail.
func (sc *SyncController) QueryAudit(c *gin.Context) {
	from, err := helper_util.ParseTime(c.DefaultQuery("from", time.Now().Add(-24*time.Hour).Format(time.RFC3339)))
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid 'from' timestamp", err)
		return
	}
	to, err := helper_util.ParseTime(c.DefaultQuery("to", time.Now().Format(time.RFC3339)))
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid 'to' timestamp", err)
		return
	}

	entries, err := sc.auditService.QueryEntries(c, from, to, c.Query("consumer"), c.Query("target"))
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to query audit trail", err)
		return
	}

	c.JSON(http.StatusOK, entries)
}
