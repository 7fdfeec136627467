package main

import (
	"context"
	"os"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/school-rfid-admin/internal/config"
	"github.com/iliyamo/school-rfid-admin/internal/database"
	"github.com/iliyamo/school-rfid-admin/internal/repository"
)

var logger = log.New("admin")

func main() {
	cfg, err := config.Load()
	errAndDie(err)

	// set up DB
	db, err := database.Open(context.Background(), cfg.DBDSN)
	errAndDie(err)
	defer db.Close()

	// start CLI
	cli := commandLine{
		db:         db,
		users:      repository.NewUserRepo(db),
		bcryptCost: cfg.BcryptCost,
		out:        os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Errorf("%v", err)
		}
		db.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
