package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"market-pulse/src/config"
	datasource "market-pulse/src/data_source"
	"market-pulse/src/eventbus"
	"market-pulse/src/logger"
	"market-pulse/src/messaging"
	"market-pulse/src/server"
	"market-pulse/src/session"
)

// -----------------------------------------------------------------------------

func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file (empty for built-in defaults)")
	flag.Parse()

	// 2. Load config
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup Logger
	appLogger := logger.NewLogger(conf.MConfig, conf.Name)
	defer appLogger.Sync()

	location, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLogger.Critical("Unknown timezone '%s': %v", conf.Timezone, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Setup Components
	db := setupDatabase(conf, appLogger)
	defer db.Close()

	calendar, storeCalendar := setupCalendar(ctx, conf, db, location, appLogger)
	networkManager := setupNetwork(conf, appLogger)

	bus := eventbus.NewEventBus(appLogger.Named("bus"))
	registry := server.NewConnectionRegistry(appLogger.Named("ws"))
	clock := session.NewClock(calendar, bus, session.NewStore(), location,
		time.Duration(conf.Session.TickMillis)*time.Millisecond, appLogger.Named("session"))
	control := setupControl(conf, appLogger)

	var observer datasource.Observer
	if control != nil {
		observer = control
	}

	feeds, err := datasource.Build(datasource.Deps{
		Config:      conf,
		Network:     networkManager,
		DB:          db,
		Calendar:    storeCalendar,
		Session:     clock.Store(),
		Broadcaster: registry,
		Observer:    observer,
		Location:    location,
		Logger:      appLogger,
	})
	if err != nil {
		appLogger.Critical("Failed to build feeds: %v", err)
	}

	// 5. Wire client messages to the bus
	router := messaging.NewRouter(bus, appLogger.Named("router"))
	messaging.NewSessionStatusResponder(clock, registry, appLogger.Named("status")).Register(bus)

	var quotes messaging.QuoteSource
	if feeds.Quotes != nil {
		quotes = feeds.Quotes
	}
	messaging.NewActionHandlers(ctx, feeds, quotes, registry, appLogger.Named("actions")).Register(bus)

	// 6. Start Servers
	api := server.NewAPIServer(conf.MConfig, server.APIDeps{
		Registry: registry,
		Frames:   router,
		Feeds:    feeds,
		Admin:    feeds,
		Session:  clock,
		DB:       db,
		Location: location,
	}, appLogger.Named("api"))
	startServers(api, control, appLogger)

	// 7. Start the clock and the feeds
	var wg sync.WaitGroup
	clock.Start(ctx, &wg)
	if err := feeds.Start(ctx, &wg); err != nil {
		appLogger.Critical("Failed to start feeds: %v", err)
	}

	// 8. Wait for a signal, then shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	_ = feeds.Stop()
	cancel()
	stopServers(api, control, appLogger)
	wg.Wait()
	appLogger.Info("Shutdown complete.")
}
