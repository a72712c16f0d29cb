package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"wiki-quiz/internal/config"
	"wiki-quiz/internal/database"
	"wiki-quiz/internal/logger"

	"go.uber.org/zap"
)

func main() {
	all := flag.Bool("all", false, "roll back every migration (down only)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-all] up|down|version\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	l := logger.Get()
	defer logger.Sync()

	migrator, err := database.NewMigrator(cfg.DB, l)
	if err != nil {
		l.Fatal("Failed to open database", zap.String("driver", cfg.DB.Driver), zap.Error(err))
	}
	defer migrator.Close()

	switch command {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Down(*all)
	case "version":
		version, dirty, ok, verr := migrator.Version()
		if verr != nil {
			err = verr
			break
		}
		if !ok {
			fmt.Println("no migrations applied")
			return
		}
		fmt.Printf("version %d (dirty: %t)\n", version, dirty)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		l.Fatal("Migration failed", zap.String("command", command), zap.Error(err))
	}
}
