package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/customeros/bccstack/config"
	"github.com/customeros/bccstack/internal/database"
	"github.com/customeros/bccstack/server"
)

func main() {
	app := &cli.App{
		Name:  "bccstack",
		Usage: "inbound email capture service",
		Before: func(c *cli.Context) error {
			log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Run database migrations",
				Action: migrate,
			},
			{
				Name:   "migrate-status",
				Usage:  "Show applied and pending migrations",
				Action: migrateStatus,
			},
			{
				Name:   "server",
				Usage:  "Start the application server",
				Action: serve,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Config initialization failed: %v", err)
	}
	if cfg == nil {
		log.Fatalf("config is empty")
	}
	return cfg
}

func migrate(c *cli.Context) error {
	cfg := loadConfig()
	db, err := database.InitDatabase(cfg.DatabaseConfig)
	if err != nil {
		return err
	}
	if err := database.Migrate(c.Context, db); err != nil {
		return cli.Exit("Database migration failed: "+err.Error(), 1)
	}
	log.Println("Database migration completed successfully")
	return nil
}

func migrateStatus(c *cli.Context) error {
	cfg := loadConfig()
	db, err := database.InitDatabase(cfg.DatabaseConfig)
	if err != nil {
		return err
	}
	return database.MigrationStatus(c.Context, db)
}

func serve(c *cli.Context) error {
	cfg := loadConfig()
	db, err := database.InitDatabase(cfg.DatabaseConfig)
	if err != nil {
		return err
	}

	log.Println("BccStack starting up...")
	srv, err := server.NewServer(context.WithoutCancel(c.Context), cfg, db)
	if err != nil {
		log.Fatalf("Server setup failed: %v", err)
	}
	return srv.Run()
}
