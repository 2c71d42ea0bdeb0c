// Command migrate inspects and changes the Zephyr database schema.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"zephyr/internal/config"
	"zephyr/internal/database"
)

const usage = `Usage:
  migrate up              apply pending SQL migrations
  migrate auto            run gorm AutoMigrate over the registered models
  migrate status          show the schema plan and pending migrations
  migrate down <version>  roll back one SQL migration`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		log.Fatal(err)
	}
}

func run(command string, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	migrator := database.DefaultMigrator(db)

	switch command {
	case "up":
		n, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		log.Printf("applied %d migration(s)", n)
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return err
		}
		log.Println("AutoMigrate finished")
	case "status":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return err
		}
		fmt.Printf("env=%s mode=%s sql=%t automigrate=%t applied=%d pending=%d\n",
			status.Env, status.Mode, status.SQL, status.AutoMigrate, len(status.Applied), len(status.Pending))
		for _, m := range status.Pending {
			fmt.Printf("  pending %s\n", m.String())
		}
	case "down":
		if len(args) < 1 {
			return errors.New("down: missing version\n\n" + usage)
		}
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("down: invalid version %q", args[0])
		}
		if err := migrator.Down(ctx, version); err != nil {
			return err
		}
		log.Printf("rolled back migration %06d", version)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", command, usage)
	}
	return nil
}
