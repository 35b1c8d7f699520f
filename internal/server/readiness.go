package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/paycore/internal/migration"
)

type ReadinessState string

const (
	ReadinessStateReady    ReadinessState = "ready"
	ReadinessStateNotReady ReadinessState = "not_ready"
	ReadinessStateOptional ReadinessState = "optional"
)

type ReadinessIssue struct {
	ID       string            `json:"id"`
	Status   ReadinessState    `json:"status"`
	Evidence map[string]string `json:"evidence,omitempty"`
}

type ReadinessResponse struct {
	SystemState ReadinessState   `json:"system_state"`
	Version     string           `json:"version,omitempty"`
	Issues      []ReadinessIssue `json:"issues"`
}

const readinessTimeout = 3 * time.Second

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness reports whether the process can serve traffic. Redis is
// optional; without it transfer locks are process local.
func (s *Server) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	issues := []ReadinessIssue{s.checkDatabase(ctx), s.checkSchema(ctx), s.checkRedis(ctx)}

	resp := ReadinessResponse{SystemState: ReadinessStateReady, Version: s.cfg.AppVersion, Issues: issues}
	for _, issue := range issues {
		if issue.Status == ReadinessStateNotReady {
			resp.SystemState = ReadinessStateNotReady
		}
	}
	status := http.StatusOK
	if resp.SystemState == ReadinessStateNotReady {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func notReady(id string, err error) ReadinessIssue {
	return ReadinessIssue{ID: id, Status: ReadinessStateNotReady, Evidence: map[string]string{"error": err.Error()}}
}

func (s *Server) checkDatabase(ctx context.Context) ReadinessIssue {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		return notReady("database", err)
	}
	return ReadinessIssue{ID: "database", Status: ReadinessStateReady}
}

func (s *Server) checkSchema(ctx context.Context) ReadinessIssue {
	if s.cfg.Database.Driver != "postgres" {
		return ReadinessIssue{ID: "schema", Status: ReadinessStateOptional,
			Evidence: map[string]string{"driver": s.cfg.Database.Driver}}
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return notReady("schema", err)
	}
	st, err := migration.Inspect(ctx, sqlDB)
	if err != nil {
		return notReady("schema", err)
	}
	evidence := map[string]string{
		"version": strconv.FormatUint(uint64(st.Version), 10),
		"latest":  strconv.FormatUint(uint64(st.Latest), 10),
	}
	if st.Dirty || st.Pending() {
		evidence["dirty"] = strconv.FormatBool(st.Dirty)
		return ReadinessIssue{ID: "schema", Status: ReadinessStateNotReady, Evidence: evidence}
	}
	return ReadinessIssue{ID: "schema", Status: ReadinessStateReady, Evidence: evidence}
}

func (s *Server) checkRedis(ctx context.Context) ReadinessIssue {
	if s.redis == nil {
		return ReadinessIssue{ID: "redis", Status: ReadinessStateOptional}
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return notReady("redis", err)
	}
	return ReadinessIssue{ID: "redis", Status: ReadinessStateReady}
}
