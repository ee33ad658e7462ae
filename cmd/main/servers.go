package main

import (
	"context"
	"time"

	"market-pulse/src/grpc_control"
	"market-pulse/src/logger"
	"market-pulse/src/server"
)

// -----------------------------------------------------------------------------

// startServers runs the HTTP/WebSocket server and, when configured, the gRPC
// health service in the background.
func startServers(api *server.APIServer, control *grpc_control.ControlService, appLogger *logger.Logger) {
	go func() {
		if err := api.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	if control == nil {
		return
	}
	go func() {
		if err := control.Start(); err != nil {
			appLogger.Critical("gRPC server failed: %v", err)
		}
	}()
}

// -----------------------------------------------------------------------------

func stopServers(api *server.APIServer, control *grpc_control.ControlService, appLogger *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := api.Stop(ctx); err != nil {
		appLogger.Error("HTTP shutdown: %v", err)
	}
	if control != nil {
		control.Stop()
	}
}
