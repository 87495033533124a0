package main

import (
	"time"

	"github.com/cppla/homedash/config"
	"github.com/cppla/homedash/models"
	"github.com/cppla/homedash/routes"
	"github.com/cppla/homedash/services"
	"github.com/cppla/homedash/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := config.InitDatabase(models.All()...)

	svc := services.NewHabitService(db,
		services.WithClock(services.RealClock{Location: cfg.Location()}),
		services.WithLocker(utils.NewKeyedLocker(utils.GetRedis())),
		services.WithRewards(services.RewardsFromConfig(cfg)),
		services.WithCacheTTL(cacheTTL(cfg)),
	)

	r := routes.SetupRouter(svc)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if err := utils.GraceServer(":"+cfg.AppPort, r, closeDB); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

// cacheTTL disables summary caching when Redis is off.
func cacheTTL(cfg config.AppConfig) time.Duration {
	if !cfg.RedisEnabled {
		return 0
	}
	return time.Duration(cfg.CacheTTLSeconds) * time.Second
}
