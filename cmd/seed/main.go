// Command seed fills the Zephyr database with demo users, friendships,
// communities and forum threads.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"zephyr/internal/config"
	"zephyr/internal/database"
	"zephyr/internal/middleware"
	"zephyr/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	users := flag.Int("users", defaults.Users, "Number of users to create")
	communities := flag.Int("communities", defaults.Communities, "Number of communities to create")
	zepchats := flag.Int("zepchats", defaults.Zepchats, "Number of forum threads to create")
	friends := flag.Int("friends", defaults.FriendsPerUser, "Friend edges generated per user")
	pending := flag.Float64("pending", defaults.PendingRatio, "Share of friend edges left pending (0-1)")
	clean := flag.Bool("clean", true, "Clear all tables before seeding")
	password := flag.String("password", defaults.Password, "Password shared by every seeded user")
	randSeed := flag.Int64("rand-seed", 0, "Deterministic random seed (0 uses the clock)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}
	middleware.Logger = middleware.NewLogger(os.Stdout, cfg.Env)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	res, err := seed.NewSeeder(db).WithLogger(middleware.Logger).Run(context.Background(), seed.Options{
		Users:          *users,
		Communities:    *communities,
		Zepchats:       *zepchats,
		FriendsPerUser: *friends,
		PendingRatio:   *pending,
		Clean:          *clean,
		Password:       *password,
		RandSeed:       *randSeed,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %s", res)
	log.Printf("All seeded users share the password: %s", *password)
}
