package main

import (
	"context"
	"time"

	"market-pulse/src/config"
	"market-pulse/src/grpc_control"
	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/network"
	"market-pulse/src/storage"
	"market-pulse/src/utils"
)

// -----------------------------------------------------------------------------

// setupDatabase opens and migrates the configured store. Failure is fatal.
func setupDatabase(conf *config.Config, appLogger *logger.Logger) interfaces.IDatabase {
	db, err := storage.New(conf.MConfig, appLogger.Named("storage"))
	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	if err := db.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
	}
	return db
}

// -----------------------------------------------------------------------------

// setupCalendar picks the trading-day source. The stored calendar falls back
// to the exchange holiday tables until the first calendar fetch lands; the
// returned StoreCalendar is nil when the exchange tables are used directly.
func setupCalendar(ctx context.Context, conf *config.Config, db interfaces.IDatabase, loc *time.Location, appLogger *logger.Logger) (interfaces.ICalendar, *utils.StoreCalendar) {
	exchange := utils.NewExchangeCalendar(conf.Session.ExchangeMIC, loc, appLogger.Named("calendar"))
	if conf.Session.Calendar == "exchange" {
		appLogger.Info("Using exchange calendar '%s'", conf.Session.ExchangeMIC)
		return exchange, nil
	}

	store := utils.NewStoreCalendar(db, loc, appLogger.Named("calendar"))
	store.Fallback = exchange
	if err := store.Reload(ctx); err != nil {
		appLogger.Warning("Stored trade calendar unavailable, using exchange calendar until refreshed: %v", err)
	}
	return store, store
}

// -----------------------------------------------------------------------------

func setupNetwork(conf *config.Config, appLogger *logger.Logger) interfaces.INetworkManager {
	return network.NewAsyncNetworkManager(conf.MConfig, appLogger.Named("network"))
}

// -----------------------------------------------------------------------------

// setupControl builds the gRPC health service, or nil when no gRPC port is
// configured.
func setupControl(conf *config.Config, appLogger *logger.Logger) *grpc_control.ControlService {
	if conf.GrpcPort == 0 {
		return nil
	}
	var names []string
	for _, f := range conf.Feeds {
		if !f.Disabled {
			names = append(names, f.Name)
		}
	}
	return grpc_control.NewControlService(conf.MConfig, names, appLogger.Named("grpc"))
}
