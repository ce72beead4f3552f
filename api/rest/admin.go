package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/combatcore/game/combat"
	"github.com/kasuganosora/combatcore/game/geom"
	"github.com/kasuganosora/combatcore/game/spawn"
	"github.com/kasuganosora/combatcore/game/world"
	"github.com/kasuganosora/combatcore/resource"
	"github.com/kasuganosora/combatcore/scheduler"
	"go.uber.org/zap"
)

// TaskLister reports periodic tasks. *scheduler.Scheduler implements it.
type TaskLister interface {
	ListTasks() []scheduler.TaskInfo
}

// Counters reports pipeline health for /api/admin/stats. Any field may be
// nil.
type Counters struct {
	Telemetry func() (forwarded, dropped uint64)
	AuditDrop func() uint64
}

// AdminHandler handles admin-only debug commands. Commands are queued onto
// the arena and applied at the start of its next tick, so they answer 202.
// Routes should be protected by middleware.AdminKey.
type AdminHandler struct {
	arena    *world.Arena
	content  Content
	tasks    TaskLister
	counters Counters
	logger   *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(arena *world.Arena, content Content, tasks TaskLister, counters Counters, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{arena: arena, content: content, tasks: tasks, counters: counters, logger: logger}
}

type damageRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
	Source string  `json:"source" binding:"max=64"`
}

type stunRequest struct {
	Seconds float64 `json:"seconds" binding:"required,gt=0,lte=60"`
}

type spawnRequest struct {
	Archetype string    `json:"archetype" binding:"required"`
	ID        string    `json:"id" binding:"max=64"`
	Position  geom.Vec3 `json:"position"`
	Facing    geom.Vec3 `json:"facing"`
	Respawn   bool      `json:"respawn"`
}

type targetRequest struct {
	ID       string    `json:"id" binding:"required,max=64"`
	Position geom.Vec3 `json:"position"`
}

// Damage queues damage against an entity.
// POST /api/admin/entities/:id/damage
func (h *AdminHandler) Damage(c *gin.Context) {
	id := c.Param("id")
	if !h.exists(c, id) {
		return
	}
	var req damageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Source == "" {
		req.Source = "admin"
	}
	h.enqueue(c, world.DamageCommand(id, req.Amount, req.Source), id)
}

// Stun queues a stun.
// POST /api/admin/entities/:id/stun
func (h *AdminHandler) Stun(c *gin.Context) {
	id := c.Param("id")
	if !h.exists(c, id) {
		return
	}
	var req stunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.enqueue(c, world.StunCommand(id, req.Seconds), id)
}

// Kill queues an immediate death.
// POST /api/admin/entities/:id/kill
func (h *AdminHandler) Kill(c *gin.Context) {
	id := c.Param("id")
	if !h.exists(c, id) {
		return
	}
	h.enqueue(c, world.KillCommand(id, "admin"), id)
}

// Spawn queues a new entity from a loaded archetype.
// POST /api/admin/spawn
func (h *AdminHandler) Spawn(c *gin.Context) {
	var req spawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.content != nil {
		if _, err := h.content.Get(req.Archetype); errors.Is(err, resource.ErrUnknownArchetype) {
			c.JSON(http.StatusNotFound, gin.H{"error": "archetype not found"})
			return
		}
	}
	if req.ID != "" {
		if _, ok := h.arena.Entity(req.ID); ok {
			c.JSON(http.StatusConflict, gin.H{"error": "entity id already in use"})
			return
		}
	}
	p := world.Placement{
		Spec:    spawn.Spec{Archetype: req.Archetype, ID: req.ID, Position: req.Position, Facing: req.Facing},
		Respawn: req.Respawn,
	}
	h.enqueue(c, world.SpawnCommand(p), req.ID)
}

// SetTarget moves or replaces the arena's opponent.
// PUT /api/admin/target
func (h *AdminHandler) SetTarget(c *gin.Context) {
	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.enqueue(c, world.SetTargetCommand(combat.TargetRef{ID: req.ID, Position: req.Position}), "")
}

// ClearTarget removes the opponent.
// DELETE /api/admin/target
func (h *AdminHandler) ClearTarget(c *gin.Context) {
	h.enqueue(c, world.ClearTargetCommand(), "")
}

// Reload re-reads the content directory. A bad bundle keeps the old set.
// POST /api/admin/content/reload
func (h *AdminHandler) Reload(c *gin.Context) {
	if h.content == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "content not loaded"})
		return
	}
	if err := h.content.Load(); err != nil {
		h.logger.Warn("content reload rejected", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	names := h.content.Names()
	h.logger.Info("content reloaded", zap.Int("archetypes", len(names)))
	c.JSON(http.StatusOK, gin.H{"archetypes": names, "count": len(names)})
}

// ListSchedulerTasks returns all registered periodic tasks.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	if h.tasks == nil {
		c.JSON(http.StatusOK, gin.H{"tasks": []scheduler.TaskInfo{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": h.tasks.ListTasks()})
}

// Stats returns pipeline counters.
// GET /api/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	resp := gin.H{"tick": h.arena.Tick(), "entities": h.arena.Len()}
	if h.counters.Telemetry != nil {
		fwd, drop := h.counters.Telemetry()
		resp["telemetry_forwarded"] = fwd
		resp["telemetry_dropped"] = drop
	}
	if h.counters.AuditDrop != nil {
		resp["audit_dropped"] = h.counters.AuditDrop()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) exists(c *gin.Context, id string) bool {
	if _, ok := h.arena.Entity(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "entity not found"})
		return false
	}
	return true
}

func (h *AdminHandler) enqueue(c *gin.Context, cmd world.Command, entity string) {
	if err := h.arena.Enqueue(cmd); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "command queue full"})
		return
	}
	h.logger.Info("admin command queued",
		zap.String("command", cmd.Name()),
		zap.String("entity", entity),
		zap.String("client_ip", c.ClientIP()))
	resp := gin.H{"queued": cmd.Name(), "tick": h.arena.Tick()}
	if entity != "" {
		resp["entity"] = entity
	}
	c.JSON(http.StatusAccepted, resp)
}
