package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	echoportal "github.com/trezcool/cems/apps/portal/echo"
	"github.com/trezcool/cems/core"
	apisvc "github.com/trezcool/cems/services/api"
	logsvc "github.com/trezcool/cems/services/logger"
	"github.com/trezcool/cems/storage/tokenstore/memstore"
	"github.com/trezcool/cems/storage/tokenstore/redisstore"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "PORTAL : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	apiLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API CLIENT : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	client := apisvc.NewClient(conf, &http.Client{Timeout: conf.API.Timeout}, apiLogger)

	// set up token storage: redis when configured, process memory otherwise
	var stores echoportal.TokenStores
	if conf.Redis.Addr != "" {
		rdb, err := redisstore.Connect(context.Background(), conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
		}
		defer func() {
			if err = rdb.Close(); err != nil {
				logger.Error("could not close redis client", err)
			}
		}()
		stores = echoportal.RedisStores(rdb, conf, logger)
	} else {
		logger.Warn("redis.addr is not set: sessions are kept in memory")
		stores = echoportal.MemoryStores(memstore.NewRecords(), logger)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Portal initializing : version %q, api %s", conf.Build, client.BaseURL()))
	defer logger.Info("Portal stopped")

	server := echoportal.NewServer(echoportal.ServerDeps{
		Conf:    conf,
		Logger:  logger,
		Backend: client,
		Stores:  stores,
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Portal.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
