package rest

import "github.com/gin-gonic/gin"

// Register mounts the arena read API on r and the admin commands behind
// guard.
func Register(r gin.IRouter, arena *ArenaHandler, admin *AdminHandler, guard ...gin.HandlerFunc) {
	r.GET("/health", arena.Health)

	api := r.Group("/api/arena")
	api.GET("/entities", arena.ListEntities)
	api.GET("/entities/:id", arena.GetEntity)
	api.GET("/entities/:id/log", arena.EntityLog)
	api.GET("/events", arena.Events)
	api.GET("/archetypes", arena.ListArchetypes)
	api.GET("/archetypes/:name", arena.GetArchetype)

	if admin == nil {
		return
	}
	adm := r.Group("/api/admin", guard...)
	adm.POST("/entities/:id/damage", admin.Damage)
	adm.POST("/entities/:id/stun", admin.Stun)
	adm.POST("/entities/:id/kill", admin.Kill)
	adm.POST("/spawn", admin.Spawn)
	adm.PUT("/target", admin.SetTarget)
	adm.DELETE("/target", admin.ClearTarget)
	adm.POST("/content/reload", admin.Reload)
	adm.GET("/scheduler", admin.ListSchedulerTasks)
	adm.GET("/stats", admin.Stats)
}
