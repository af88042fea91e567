package main

import (
	"log"
	"os"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/cache"
	"github.com/trezcool/darasa/core/catalog"
	"github.com/trezcool/darasa/core/track"
	authsvc "github.com/trezcool/darasa/services/auth"
	logsvc "github.com/trezcool/darasa/services/logger"
	inmemdocs "github.com/trezcool/darasa/storage/docstore/inmem"
	pgdocs "github.com/trezcool/darasa/storage/docstore/pg"
)

func main() {
	defer os.Exit(0)

	// =========================================================================
	// Set up Dependencies

	conf, err := core.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	std := log.New(os.Stdout, "DARASA : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	var logger core.Logger
	if conf.Debug {
		logger = logsvc.NewStdLogger(std, conf)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}
	logger.Enable(true)

	ds, closeDS, err := setUpDocstore(conf)
	if err != nil {
		logger.Fatal("setting up document store", err)
	}
	defer closeDS()

	auth := authsvc.NewAuthenticator(conf)
	sess := auth.Resolve(os.Getenv("DARASA_SESSION_TOKEN"))

	// =========================================================================
	// Initialize the session-scoped data layer

	store := cache.NewStore()
	policy := cache.DefaultPolicy(conf)
	catalogSvc := catalog.NewService(store, policy, ds, logger)
	trackSvc := track.NewService(store, policy, ds, logger, catalogSvc)

	// =========================================================================
	// Run CLI

	cli := commandLine{
		sess:       sess,
		store:      store,
		catalogSvc: catalogSvc,
		trackSvc:   trackSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func setUpDocstore(conf *core.Config) (core.DocumentStore, func(), error) {
	if conf.IsDev() {
		return inmemdocs.Open(), func() {}, nil
	}
	db, err := pgdocs.Open(conf)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = db.Close() }, nil
}
