package main

import (
	"go.uber.org/zap"

	"github.com/homewright/homewright/api"
	"github.com/homewright/homewright/chat"
	"github.com/homewright/homewright/config"
	"github.com/homewright/homewright/llm"
	"github.com/homewright/homewright/stores"
)

func main() {
	cfg := config.Load()

	logger, err := config.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	store, err := stores.NewStore(stores.NewStoreConfig(cfg.DBType, cfg.DBConnection))
	if err != nil {
		logger.Fatal("failed to initialize store",
			zap.String("db_type", cfg.DBType),
			zap.Error(err))
	}
	defer store.Close()

	factory := llm.NewFactory()
	contexts := chat.NewContextBuilder(store, logger)
	orchestrator := chat.NewOrchestrator(store, contexts, factory, logger)

	maintenance := chat.NewMaintenance(store, cfg.ArchiveAfter, logger)
	if err := maintenance.Start(); err != nil {
		logger.Fatal("failed to start maintenance jobs", zap.Error(err))
	}
	defer maintenance.Stop()

	handler := api.NewHandler(store, orchestrator, factory, logger)
	router := api.NewRouter(handler)

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
