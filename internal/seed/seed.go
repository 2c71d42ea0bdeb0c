package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"zephyr/internal/database"
	"zephyr/internal/models"
	"zephyr/internal/repository"

	"gorm.io/gorm"
)

// DefaultPassword is shared by every seeded account.
const DefaultPassword = "Zephyr$eedPass1"

// Options configures a seeding run.
type Options struct {
	Users          int
	Communities    int
	Zepchats       int
	FriendsPerUser int
	// PendingRatio is the share of generated friend edges left as pending requests.
	PendingRatio float64
	Clean        bool
	Password     string
	RandSeed     int64
}

// DefaultOptions returns a small but connected demo dataset.
func DefaultOptions() Options {
	return Options{
		Users:          40,
		Communities:    6,
		Zepchats:       25,
		FriendsPerUser: 4,
		PendingRatio:   0.2,
		Password:       DefaultPassword,
	}
}

// Result summarizes what a run created.
type Result struct {
	Users           int
	Friendships     int
	PendingRequests int
	Messages        int
	Communities     int
	Zepchats        int
	Replies         int
	Votes           int
}

func (r Result) String() string {
	return fmt.Sprintf("users=%d friendships=%d pending=%d messages=%d communities=%d zepchats=%d replies=%d votes=%d",
		r.Users, r.Friendships, r.PendingRequests, r.Messages, r.Communities, r.Zepchats, r.Replies, r.Votes)
}

// Seeder populates a database with demo data.
type Seeder struct {
	db     *gorm.DB
	tx     repository.Transactor
	logger *slog.Logger
}

// NewSeeder returns a Seeder for db.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db, tx: repository.NewTransactor(db), logger: slog.Default()}
}

// WithLogger overrides the progress logger.
func (s *Seeder) WithLogger(logger *slog.Logger) *Seeder {
	s.logger = logger
	return s
}

// ClearAll removes every row from the schema-managed tables.
func (s *Seeder) ClearAll(ctx context.Context) error {
	tables := database.PersistentModels()
	if s.db.Dialector.Name() == "postgres" {
		names := make([]string, 0, len(tables))
		for _, m := range tables {
			stmt := &gorm.Statement{DB: s.db}
			if err := stmt.Parse(m); err != nil {
				return fmt.Errorf("resolve table for %T: %w", m, err)
			}
			names = append(names, stmt.Schema.Table)
		}
		sql := "TRUNCATE TABLE " + strings.Join(names, ", ") + " RESTART IDENTITY CASCADE"
		return s.db.WithContext(ctx).Exec(sql).Error
	}

	session := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for i := len(tables) - 1; i >= 0; i-- {
		if err := session.Delete(tables[i]).Error; err != nil {
			return fmt.Errorf("clear %T: %w", tables[i], err)
		}
	}
	return nil
}

// Run generates users, friendships with conversations, communities with
// staggered membership, and forum threads with replies and votes. Everything
// is written in one transaction.
func (s *Seeder) Run(ctx context.Context, opts Options) (Result, error) {
	var res Result
	if opts.Users < 2 {
		return res, fmt.Errorf("seed needs at least 2 users, got %d", opts.Users)
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	if opts.Clean {
		if err := s.ClearAll(ctx); err != nil {
			return res, err
		}
	}

	f, err := NewFactory(s.db, opts.Password, opts.RandSeed)
	if err != nil {
		return res, err
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		users := make([]*models.User, 0, opts.Users)
		for i := 0; i < opts.Users; i++ {
			u, err := f.CreateUser(ctx)
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			users = append(users, u)
		}
		res.Users = len(users)
		s.logger.Info("seeded users", slog.Int("count", res.Users))

		if err := s.seedFriends(ctx, f, users, opts, &res); err != nil {
			return err
		}
		if err := s.seedCommunities(ctx, f, users, opts, &res); err != nil {
			return err
		}
		return s.seedZepchats(ctx, f, users, opts, &res)
	})
	if err != nil {
		return Result{}, err
	}
	s.logger.Info("seed complete", slog.String("result", res.String()))
	return res, nil
}

func (s *Seeder) seedFriends(ctx context.Context, f *Factory, users []*models.User, opts Options, res *Result) error {
	seen := make(map[string]struct{})
	for _, u := range users {
		for _, other := range f.Pick(users, opts.FriendsPerUser, u) {
			key := models.PairKey(u.ID, other.ID)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			if f.Chance(opts.PendingRatio) {
				if err := f.SendRequest(ctx, u, other); err != nil {
					return fmt.Errorf("send request: %w", err)
				}
				res.PendingRequests++
				continue
			}
			conv, err := f.Befriend(ctx, u, other)
			if err != nil {
				return fmt.Errorf("befriend: %w", err)
			}
			res.Friendships++
			for i, n := 0, f.faker.Number(0, 6); i < n; i++ {
				sender := u
				if i%2 == 1 {
					sender = other
				}
				if _, err := f.Message(ctx, conv, sender); err != nil {
					return fmt.Errorf("message: %w", err)
				}
				res.Messages++
			}
		}
	}
	s.logger.Info("seeded friendships",
		slog.Int("accepted", res.Friendships),
		slog.Int("pending", res.PendingRequests),
	)
	return nil
}

func (s *Seeder) seedCommunities(ctx context.Context, f *Factory, users []*models.User, opts Options, res *Result) error {
	for i := 0; i < opts.Communities; i++ {
		admin := users[f.faker.Number(0, len(users)-1)]
		members := f.Pick(users, f.faker.Number(1, len(users)-1), admin)
		community, err := f.CreateCommunity(ctx, admin, members)
		if err != nil {
			return fmt.Errorf("create community: %w", err)
		}
		res.Communities++
		chatters := append([]*models.User{admin}, members...)
		for j, n := 0, f.faker.Number(0, 8); j < n; j++ {
			if err := f.CommunityMessage(ctx, community, chatters[j%len(chatters)]); err != nil {
				return fmt.Errorf("community message: %w", err)
			}
		}
	}
	s.logger.Info("seeded communities", slog.Int("count", res.Communities))
	return nil
}

func (s *Seeder) seedZepchats(ctx context.Context, f *Factory, users []*models.User, opts Options, res *Result) error {
	for i := 0; i < opts.Zepchats; i++ {
		author := users[f.faker.Number(0, len(users)-1)]
		z, err := f.CreateZepchat(ctx, author)
		if err != nil {
			return fmt.Errorf("create zepchat: %w", err)
		}
		res.Zepchats++

		for _, voter := range f.Pick(users, f.faker.Number(0, 5), nil) {
			if err := f.Vote(ctx, models.VoteTargetZepchat, z.ID, voter); err != nil {
				return fmt.Errorf("vote: %w", err)
			}
			res.Votes++
		}
		for _, replier := range f.Pick(users, f.faker.Number(0, 3), nil) {
			reply, err := f.Reply(ctx, z, replier)
			if err != nil {
				return fmt.Errorf("reply: %w", err)
			}
			res.Replies++
			for _, voter := range f.Pick(users, f.faker.Number(0, 2), replier) {
				if err := f.Vote(ctx, models.VoteTargetReply, reply.ID, voter); err != nil {
					return fmt.Errorf("vote reply: %w", err)
				}
				res.Votes++
			}
		}
	}
	s.logger.Info("seeded zepchats",
		slog.Int("threads", res.Zepchats),
		slog.Int("replies", res.Replies),
	)
	return nil
}
