// Command admin manages platform administrators and account blocks from the shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"zephyr/internal/config"
	"zephyr/internal/credentials"
	"zephyr/internal/database"
	"zephyr/internal/models"
	"zephyr/internal/repository"
	"zephyr/internal/validation"

	"gorm.io/gorm"
)

const usage = `Usage:
  admin promote <id|email>                        grant platform admin
  admin demote <id|email>                         revoke platform admin
  admin block <id|email>                          block an account
  admin unblock <id|email>                        unblock an account
  admin create <username> <email>                 create an admin (password from ADMIN_PASSWORD)
  admin list-admins                               list platform admins`

type cli struct {
	db    *gorm.DB
	users repository.UserRepository
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	c := &cli{db: db, users: repository.NewUserRepository(db)}
	if err := c.run(context.Background(), os.Args[1], os.Args[2:]); err != nil {
		log.Fatal(err)
	}
}

func (c *cli) run(ctx context.Context, command string, args []string) error {
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s: missing arguments\n\n%s", command, usage)
		}
		return nil
	}

	switch command {
	case "promote", "demote":
		if err := need(1); err != nil {
			return err
		}
		return c.setAdmin(ctx, args[0], command == "promote")
	case "block", "unblock":
		if err := need(1); err != nil {
			return err
		}
		return c.setBlocked(ctx, args[0], command == "block")
	case "create":
		if err := need(2); err != nil {
			return err
		}
		return c.createAdmin(ctx, args[0], args[1], os.Getenv("ADMIN_PASSWORD"))
	case "list-admins":
		return c.listAdmins(ctx)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", command, usage)
	}
}

// resolve accepts a numeric ID or an email address.
func (c *cli) resolve(ctx context.Context, ref string) (*models.User, error) {
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		return c.users.GetByID(ctx, uint(id))
	}
	user, err := c.users.GetByEmail(ctx, validation.NormalizeEmail(ref))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("no user with email %q", ref)
	}
	return user, nil
}

func (c *cli) setAdmin(ctx context.Context, ref string, admin bool) error {
	user, err := c.resolve(ctx, ref)
	if err != nil {
		return err
	}
	if user.IsAdmin == admin {
		fmt.Printf("%s (ID %d) already has is_admin=%t\n", user.Username, user.ID, admin)
		return nil
	}
	if err := c.users.UpdateFields(ctx, user.ID, map[string]any{"is_admin": admin}); err != nil {
		return err
	}
	fmt.Printf("Updated %s (ID %d): is_admin=%t\n", user.Username, user.ID, admin)
	return nil
}

func (c *cli) setBlocked(ctx context.Context, ref string, blocked bool) error {
	user, err := c.resolve(ctx, ref)
	if err != nil {
		return err
	}
	if user.IsAdmin && blocked {
		return errors.New("admins cannot be blocked; demote first")
	}
	if err := c.users.SetBlocked(ctx, user.ID, blocked); err != nil {
		return err
	}
	fmt.Printf("Updated %s (ID %d): is_blocked=%t\n", user.Username, user.ID, blocked)
	return nil
}

func (c *cli) createAdmin(ctx context.Context, username, email, password string) error {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateUsername(username); err != nil {
		return err
	}
	if err := validation.ValidateEmail(email); err != nil {
		return err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD: %w", err)
	}

	hash, err := credentials.HashPassword(password)
	if err != nil {
		return err
	}
	user := &models.User{
		Username:    username,
		DisplayName: username,
		Email:       email,
		Password:    hash,
		Status:      models.UserStatusOnline,
		IsAdmin:     true,
	}
	if err := c.users.Create(ctx, user); err != nil {
		return err
	}
	fmt.Printf("Created admin %s (ID %d)\n", user.Username, user.ID)
	return nil
}

func (c *cli) listAdmins(ctx context.Context) error {
	var admins []models.User
	if err := c.db.WithContext(ctx).Where("is_admin = ?", true).Order("id").Find(&admins).Error; err != nil {
		return err
	}
	if len(admins) == 0 {
		fmt.Println("No admins found")
		return nil
	}
	for _, a := range admins {
		fmt.Printf("ID: %d | Username: %s | Email: %s | Blocked: %t\n", a.ID, a.Username, a.Email, a.IsBlocked)
	}
	return nil
}
