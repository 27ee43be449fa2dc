package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SyncCatalog pulls the full wholesale package list and upserts it into the
// local catalog. The sync also runs on a schedule; this endpoint forces one.
func (s *Server) SyncCatalog(c *gin.Context) {
	count, err := s.syncer.Sync(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "synced": count})
}
