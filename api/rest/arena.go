// Package rest exposes the arena over HTTP: read endpoints for entity state
// and telemetry, and admin debug commands.
package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/combatcore/cache"
	"github.com/kasuganosora/combatcore/game/combat"
	"github.com/kasuganosora/combatcore/game/telemetry"
	"github.com/kasuganosora/combatcore/game/world"
	"github.com/kasuganosora/combatcore/model"
	"github.com/kasuganosora/combatcore/resource"
	"go.uber.org/zap"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Content lists, resolves and reloads archetypes. *resource.Loader
// implements it.
type Content interface {
	Names() []string
	Get(name string) (resource.Archetype, error)
	Load() error
}

// CombatLog reads persisted combat events. *audit.Service implements it.
type CombatLog interface {
	Recent(ctx context.Context, entityID string, limit int) ([]model.CombatLog, error)
}

// ArenaHandler serves the read-only arena endpoints.
type ArenaHandler struct {
	arena   *world.Arena
	store   cache.Store
	logs    CombatLog
	content Content
	logger  *zap.Logger
}

// NewArenaHandler creates an ArenaHandler. store, logs and content may be
// nil; the endpoints that need them then answer 503.
func NewArenaHandler(arena *world.Arena, store cache.Store, logs CombatLog, content Content, logger *zap.Logger) *ArenaHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArenaHandler{arena: arena, store: store, logs: logs, content: content, logger: logger}
}

// Health reports liveness plus the arena clock.
// GET /health
func (h *ArenaHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"tick":     h.arena.Tick(),
		"clock":    h.arena.Clock(),
		"entities": h.arena.Len(),
	})
}

// ListEntities returns every entity snapshot, optionally filtered by
// variant or state.
// GET /api/arena/entities?variant=soldier&state=cover
func (h *ArenaHandler) ListEntities(c *gin.Context) {
	variant, state := c.Query("variant"), c.Query("state")
	snaps := h.arena.Snapshot()
	out := make([]combat.Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if variant != "" && s.Variant != variant {
			continue
		}
		if state != "" && s.State != state {
			continue
		}
		out = append(out, s)
	}
	resp := gin.H{"tick": h.arena.Tick(), "entities": out, "count": len(out)}
	if t, ok := h.arena.Target(); ok {
		resp["target"] = t
	}
	c.JSON(http.StatusOK, resp)
}

// GetEntity returns one entity snapshot.
// GET /api/arena/entities/:id
func (h *ArenaHandler) GetEntity(c *gin.Context) {
	snap, ok := h.arena.Entity(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "entity not found"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Events returns the most recent bus events, newest first.
// GET /api/arena/events?limit=50
func (h *ArenaHandler) Events(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event log unavailable"})
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	events, err := telemetry.Recent(c.Request.Context(), h.store, limit)
	if err != nil {
		h.logger.Error("read recent events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// EntityLog returns persisted combat events for one entity, which may
// already be dead and gone from the arena.
// GET /api/arena/entities/:id/log?limit=50
func (h *ArenaHandler) EntityLog(c *gin.Context) {
	if h.logs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "combat log disabled"})
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	rows, err := h.logs.Recent(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.logger.Error("read combat log", zap.String("entity", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": rows, "count": len(rows)})
}

// ListArchetypes returns the loaded archetype names.
// GET /api/arena/archetypes
func (h *ArenaHandler) ListArchetypes(c *gin.Context) {
	if h.content == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "content not loaded"})
		return
	}
	names := h.content.Names()
	c.JSON(http.StatusOK, gin.H{"archetypes": names, "count": len(names)})
}

// GetArchetype returns one archetype definition.
// GET /api/arena/archetypes/:name
func (h *ArenaHandler) GetArchetype(c *gin.Context) {
	if h.content == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "content not loaded"})
		return
	}
	a, err := h.content.Get(c.Param("name"))
	if errors.Is(err, resource.ErrUnknownArchetype) {
		c.JSON(http.StatusNotFound, gin.H{"error": "archetype not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, a)
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return 0, false
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, true
}
