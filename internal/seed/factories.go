// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"zephyr/internal/content"
	"zephyr/internal/credentials"
	"zephyr/internal/models"
	"zephyr/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

var gameTags = []string{
	"fps", "mmo", "rpg", "moba", "speedrun", "retro", "indie", "coop",
	"battleroyale", "strategy", "fighting", "racing", "esports", "modding",
}

// Factory builds domain entities and persists them through the repositories.
type Factory struct {
	faker *gofakeit.Faker

	users       repository.UserRepository
	friends     repository.FriendRepository
	chats       repository.ChatRepository
	communities repository.CommunityRepository
	zepchats    repository.ZepchatRepository
	votes       repository.VoteRepository

	passwordHash string
	seq          int
}

// NewFactory creates a Factory bound to db. A zero randSeed seeds from the clock.
func NewFactory(db *gorm.DB, password string, randSeed int64) (*Factory, error) {
	if randSeed == 0 {
		randSeed = time.Now().UnixNano()
	}
	hash, err := credentials.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	return &Factory{
		faker:        gofakeit.New(randSeed),
		users:        repository.NewUserRepository(db),
		friends:      repository.NewFriendRepository(db),
		chats:        repository.NewChatRepository(db),
		communities:  repository.NewCommunityRepository(db),
		zepchats:     repository.NewZepchatRepository(db),
		votes:        repository.NewVoteRepository(db),
		passwordHash: hash,
	}, nil
}

// CreateUser persists a user with generated identity fields. Every seeded user
// shares the factory password.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	f.seq++
	first := f.faker.FirstName()
	last := f.faker.LastName()
	username := fmt.Sprintf("%s_%d", strings.ToLower(f.faker.Username()), f.seq)
	if len(username) > 30 {
		username = username[len(username)-30:]
	}

	user := &models.User{
		Username:    username,
		DisplayName: first + " " + last,
		Email:       fmt.Sprintf("%s@zephyr.test", username),
		Password:    f.passwordHash,
		Wallet:      int64(f.faker.Number(0, 5000)),
		Status:      f.status(),
		IsPremium:   f.faker.Number(1, 10) == 1,
		ProfilePicture: fmt.Sprintf("https://picsum.photos/seed/%s/256/256",
			f.faker.UUID()),
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (f *Factory) status() models.UserStatus {
	switch f.faker.Number(0, 5) {
	case 0:
		return models.UserStatusIdle
	case 1:
		return models.UserStatusDoNotDisturb
	default:
		return models.UserStatusOnline
	}
}

// Befriend records an accepted friendship and opens the pair's conversation.
func (f *Factory) Befriend(ctx context.Context, a, b *models.User) (*models.Conversation, error) {
	if err := f.SendRequest(ctx, a, b); err != nil {
		return nil, err
	}
	if _, err := f.friends.Accept(ctx, a.ID, b.ID); err != nil {
		return nil, err
	}
	return f.chats.FindOrCreateConversation(ctx, a.ID, b.ID)
}

// SendRequest records a pending request from requester to addressee.
func (f *Factory) SendRequest(ctx context.Context, requester, addressee *models.User) error {
	return f.friends.Create(ctx, &models.Friendship{
		RequesterID: requester.ID,
		AddresseeID: addressee.ID,
		Status:      models.FriendshipStatusPending,
	})
}

// Message appends a direct message from sender to conv.
func (f *Factory) Message(ctx context.Context, conv *models.Conversation, sender *models.User) (*models.Message, error) {
	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       sender.ID,
		Content:        f.faker.Sentence(f.faker.Number(3, 14)),
	}
	if err := f.chats.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// CreateCommunity creates a community owned by admin and joins members in
// order, one minute apart, so the earliest joiner is the successor.
func (f *Factory) CreateCommunity(ctx context.Context, admin *models.User, members []*models.User) (*models.Community, error) {
	community := &models.Community{
		Name:        f.communityName(),
		Description: f.faker.Paragraph(1, 2, 10, " "),
		Hashtags:    content.NormalizeTags(f.tags(3)),
		IsPrivate:   f.faker.Number(1, 5) == 1,
		Picture:     fmt.Sprintf("https://picsum.photos/seed/%s/800/400", f.faker.UUID()),
		CreatedBy:   admin.ID,
	}
	if err := f.communities.Create(ctx, community); err != nil {
		return nil, err
	}

	joined := time.Now().Add(-time.Duration(len(members)+1) * time.Minute)
	if _, err := f.communities.AddMember(ctx, &models.CommunityMember{
		CommunityID: community.ID,
		UserID:      admin.ID,
		Role:        models.CommunityRoleAdmin,
		JoinedAt:    joined,
	}); err != nil {
		return nil, err
	}
	for i, m := range members {
		if m.ID == admin.ID {
			continue
		}
		if _, err := f.communities.AddMember(ctx, &models.CommunityMember{
			CommunityID: community.ID,
			UserID:      m.ID,
			Role:        models.CommunityRoleMember,
			JoinedAt:    joined.Add(time.Duration(i+1) * time.Minute),
		}); err != nil {
			return nil, err
		}
	}
	return community, nil
}

// CommunityMessage posts a message to a community as sender.
func (f *Factory) CommunityMessage(ctx context.Context, community *models.Community, sender *models.User) error {
	return f.communities.CreateMessage(ctx, &models.CommunityMessage{
		CommunityID: community.ID,
		SenderID:    sender.ID,
		Content:     f.faker.Sentence(f.faker.Number(3, 12)),
	})
}

func (f *Factory) communityName() string {
	name := capitalize(f.faker.Adjective()) + " " + capitalize(f.faker.Noun())
	if len(name) > 80 {
		name = name[:80]
	}
	return name
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (f *Factory) tags(limit int) []string {
	n := f.faker.Number(1, limit)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, "#"+f.faker.RandomString(gameTags))
	}
	return out
}

// CreateZepchat posts a forum thread by author.
func (f *Factory) CreateZepchat(ctx context.Context, author *models.User) (*models.Zepchat, error) {
	z := &models.Zepchat{
		Heading:        f.faker.Sentence(f.faker.Number(4, 9)),
		Content:        f.faker.Paragraph(f.faker.Number(1, 3), 3, 12, "\n\n"),
		Tags:           content.NormalizeTags(f.tags(4)),
		AuthorSnapshot: models.SnapshotOf(author),
	}
	if err := f.zepchats.Create(ctx, z); err != nil {
		return nil, err
	}
	return z, nil
}

// Reply adds a reply to z by author.
func (f *Factory) Reply(ctx context.Context, z *models.Zepchat, author *models.User) (*models.ZepReply, error) {
	r := &models.ZepReply{
		ZepchatID:      z.ID,
		Content:        f.faker.Sentence(f.faker.Number(5, 20)),
		AuthorSnapshot: models.SnapshotOf(author),
	}
	if err := f.zepchats.CreateReply(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Vote casts a random up or down vote from voter on the target.
func (f *Factory) Vote(ctx context.Context, target models.VoteTarget, targetID uint, voter *models.User) error {
	value := 1
	if f.faker.Number(1, 4) == 1 {
		value = -1
	}
	return f.votes.Set(ctx, target, targetID, voter.ID, value)
}

// Chance reports true with probability p.
func (f *Factory) Chance(p float64) bool {
	return f.faker.Float64Range(0, 1) < p
}

// Pick returns n distinct users from pool, excluding skip.
func (f *Factory) Pick(pool []*models.User, n int, skip *models.User) []*models.User {
	idx := make([]int, len(pool))
	for i := range idx {
		idx[i] = i
	}
	f.faker.ShuffleInts(idx)
	out := make([]*models.User, 0, n)
	for _, i := range idx {
		if len(out) == n {
			break
		}
		if skip != nil && pool[i].ID == skip.ID {
			continue
		}
		out = append(out, pool[i])
	}
	return out
}
