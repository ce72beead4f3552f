package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/combatcore/api/rest"
	"github.com/kasuganosora/combatcore/api/sse"
	"github.com/kasuganosora/combatcore/api/ws"
	"github.com/kasuganosora/combatcore/audit"
	"github.com/kasuganosora/combatcore/cache"
	"github.com/kasuganosora/combatcore/config"
	dbadapter "github.com/kasuganosora/combatcore/db"
	"github.com/kasuganosora/combatcore/game/combat"
	"github.com/kasuganosora/combatcore/game/geom"
	"github.com/kasuganosora/combatcore/game/spawn"
	"github.com/kasuganosora/combatcore/game/telemetry"
	"github.com/kasuganosora/combatcore/game/world"
	mw "github.com/kasuganosora/combatcore/middleware"
	"github.com/kasuganosora/combatcore/model"
	"github.com/kasuganosora/combatcore/resource"
	"github.com/kasuganosora/combatcore/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Database / combat log ----
	var auditSvc *audit.Service
	db, err := dbadapter.Open(cfg.Database)
	switch {
	case errors.Is(err, dbadapter.ErrDisabled):
		logger.Info("database disabled; combat log not persisted")
	case err != nil:
		log.Fatalf("db: %v", err)
	default:
		if err := model.AutoMigrate(db); err != nil {
			log.Fatalf("db migrate: %v", err)
		}
		logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))
		if cfg.Audit.Enabled {
			auditSvc = audit.New(db, logger, audit.Options{
				QueueSize:     cfg.Audit.QueueSize,
				BatchSize:     cfg.Audit.BatchSize,
				FlushInterval: cfg.Audit.FlushInterval,
				Retention:     cfg.Audit.Retention,
			})
		}
	}

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	store, err := cache.NewStore(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	defer store.Close()
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Archetype content ----
	content := resource.NewLoader(cfg.Sim.ContentDir, logger)
	if err := content.Load(); err != nil {
		log.Fatalf("content: %v", err)
	}
	if cfg.Sim.WatchContent {
		go func() {
			err := content.Watch(ctx, func(names []string) {
				logger.Info("content reloaded", zap.Strings("archetypes", names))
			})
			if err != nil {
				logger.Warn("content watcher stopped", zap.Error(err))
			}
		}()
	}

	// ---- Arena ----
	var arena *world.Arena
	bridgeOpts := telemetry.Options{
		PubSub:  pubsub,
		Store:   store,
		LogSize: cfg.Sim.EventLogSize,
		Tick:    func() uint64 { return arena.Tick() },
		Logger:  logger,
	}
	if auditSvc != nil {
		bridgeOpts.Sink = auditSvc
	}
	bridge := telemetry.New(bridgeOpts)
	bridgeCtx, stopBridge := context.WithCancel(context.Background())
	bridgeDone := make(chan struct{})
	go func() {
		bridge.Run(bridgeCtx)
		close(bridgeDone)
	}()

	factoryOpts := []spawn.Option{spawn.WithLogger(logger)}
	if cfg.Sim.Seed != 0 {
		factoryOpts = append(factoryOpts, spawn.WithSeed(cfg.Sim.Seed))
	}
	factory := spawn.NewFactory(content, factoryOpts...)
	factory.OnSpawn(func(e *combat.Entity, _ resource.Archetype) { bridge.Attach(e) })

	sched := scheduler.New(logger)
	var respawner *world.Respawner
	arena = world.NewArena(factory, world.Options{
		MaxDelta:     cfg.Sim.MaxDeltaS,
		CommandQueue: cfg.Sim.CommandQueue,
		Logger:       logger,
		OnRemove: func(e *combat.Entity, p world.Placement) {
			bridge.Detach(e.ID())
			respawner.OnRemove(e, p)
		},
	})
	respawner = world.NewRespawner(arena, sched, cfg.Sim.RespawnDelay, logger)

	if t := cfg.Sim.Target; t.ID != "" {
		arena.SetTarget(combat.TargetRef{ID: t.ID, Position: geom.V(t.X, t.Y, t.Z)})
	}
	for _, sp := range cfg.Sim.Spawns {
		_, err := arena.Spawn(world.Placement{
			Spec:    spawn.Spec{Archetype: sp.Archetype, ID: sp.ID, Position: geom.V(sp.X, sp.Y, sp.Z)},
			Respawn: sp.Respawn,
		})
		if err != nil {
			logger.Warn("initial spawn failed", zap.String("archetype", sp.Archetype), zap.Error(err))
		}
	}

	// ---- Scheduler ----
	publisher := world.NewPublisher(arena, store, logger)
	sched.AddStepper("arena", cfg.Sim.TickInterval(), arena.Stepper())
	sched.AddTicker("snapshot", cfg.Sim.SnapshotInterval(), publisher.Run(ctx))
	if auditSvc != nil && cfg.Audit.Retention > 0 {
		sched.AddTicker("combat-log-retention", time.Hour, auditSvc.PruneTask(ctx))
	}
	logger.Info("Arena running",
		zap.Int("entities", arena.Len()),
		zap.Duration("tick", cfg.Sim.TickInterval()))

	// ---- HTTP ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	adminNetworks, err := mw.ParseNetworks(cfg.Security.AdminNetworks)
	if err != nil {
		log.Fatalf("security: %v", err)
	}
	limiter := mw.NewRateLimiter(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst)
	defer limiter.Stop()

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger, "/health"), mw.Recovery(logger), limiter.Handler())

	var logs apirest.CombatLog
	if auditSvc != nil {
		logs = auditSvc
	}
	counters := apirest.Counters{Telemetry: bridge.Stats}
	if auditSvc != nil {
		counters.AuditDrop = auditSvc.Dropped
	}
	apirest.Register(r,
		apirest.NewArenaHandler(arena, store, logs, content, logger),
		apirest.NewAdminHandler(arena, content, sched, counters, logger),
		mw.IPWhitelist(adminNetworks), mw.AdminKey(cfg.Server.AdminKey))
	r.GET("/api/arena/stream", sse.NewHandler(pubsub, logger).ServeSSE)
	r.GET("/api/arena/ws", ws.NewHandler(pubsub, cfg.Security.AllowedOrigins, logger).ServeWS)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("Server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	sched.Stop()
	if err := publisher.Publish(shutdownCtx); err != nil {
		logger.Warn("final snapshot", zap.Error(err))
	}
	stopBridge()
	<-bridgeDone
	if auditSvc != nil {
		auditSvc.Stop(shutdownCtx)
	}
}
