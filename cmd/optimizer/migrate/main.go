// Command migrate creates or drops the archive schema.
//
// Usage:
//
//	go run cmd/optimizer/migrate/main.go -config config.yaml up
//	go run cmd/optimizer/migrate/main.go -config config.yaml down
package main

import (
	"context"
	"flag"
	"log"

	"github.com/omniroute/swap-middleware/pkg/archive"
	"github.com/omniroute/swap-middleware/pkg/config"
	"github.com/omniroute/swap-middleware/pkg/pgutil"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err)
	}

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatalf("error connecting to database: %s", err)
	}
	defer db.Close()

	ctx := context.Background()
	switch flag.Arg(0) {
	case "up":
		if err := pgutil.CreateSchema(ctx, db, archive.Models()...); err != nil {
			log.Fatalf("error creating schema: %s", err)
		}
		log.Printf("archive schema created in %s", cfg.Database.Database)
	case "down":
		if err := pgutil.DropTables(ctx, db, archive.Models()...); err != nil {
			log.Fatalf("error dropping schema: %s", err)
		}
		log.Printf("archive schema dropped from %s", cfg.Database.Database)
	default:
		log.Fatalf("unknown command %q: expected up or down", flag.Arg(0))
	}
}
