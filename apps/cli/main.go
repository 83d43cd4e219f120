package main

import (
	"log"
	"net/http"
	"os"

	"github.com/trezcool/cems/core"
	apisvc "github.com/trezcool/cems/services/api"
	logsvc "github.com/trezcool/cems/services/logger"
	"github.com/trezcool/cems/storage/tokenstore/filestore"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "CEMS : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	client := apisvc.NewClient(conf, &http.Client{Timeout: conf.API.Timeout}, logger)
	store := filestore.New(conf.CLI.CredentialsFile, logger)

	cli := newCommandLine(conf, client, store, logger, os.Stdout)
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("error: "+core.FormatError(err), err)
		}
		os.Exit(1)
	}
}
