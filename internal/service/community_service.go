package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zephyr/internal/content"
	"zephyr/internal/events"
	"zephyr/internal/middleware"
	"zephyr/internal/models"
	"zephyr/internal/observability"
	"zephyr/internal/repository"
	"zephyr/internal/validation"
)

const communitySearchLimit = 50

// CommunityInput is the payload for creating a community.
type CommunityInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Hashtags    []string `json:"hashtags"`
	IsPrivate   bool     `json:"is_private"`
	MemberIDs   []uint   `json:"member_ids"`
}

// CommunityUpdate is a partial edit of a community's metadata.
type CommunityUpdate struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Hashtags    *[]string `json:"hashtags"`
	IsPrivate   *bool     `json:"is_private"`
}

// CommunityService manages communities, membership and admin succession.
type CommunityService struct {
	communities   repository.CommunityRepository
	users         repository.UserRepository
	tx            repository.Transactor
	notifications *NotificationService
	realtime      RealtimePublisher
	media         MediaStore
	events        EventPublisher
	now           func() time.Time
}

func NewCommunityService(
	communities repository.CommunityRepository,
	users repository.UserRepository,
	tx repository.Transactor,
	notifications *NotificationService,
	realtime RealtimePublisher,
	media MediaStore,
	events EventPublisher,
) *CommunityService {
	return &CommunityService{
		communities:   communities,
		users:         users,
		tx:            tx,
		notifications: notifications,
		realtime:      realtime,
		media:         media,
		events:        events,
		now:           time.Now,
	}
}

// Create stores a new community with creatorID as admin and memberIDs as plain members.
func (s *CommunityService) Create(ctx context.Context, creatorID uint, in CommunityInput, picture []byte) (*models.Community, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Hashtags = content.NormalizeTags(in.Hashtags)
	if err := validation.ValidateCommunity(in.Name, in.Description, in.Hashtags); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	invitees, err := s.resolveInvitees(ctx, creatorID, in.MemberIDs)
	if err != nil {
		return nil, err
	}

	community := &models.Community{
		Name:        in.Name,
		Description: content.Sanitize(in.Description),
		Hashtags:    in.Hashtags,
		IsPrivate:   in.IsPrivate,
		CreatedBy:   creatorID,
	}
	now := s.now()
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.communities.Create(ctx, community); err != nil {
			return err
		}
		if _, err := s.communities.AddMember(ctx, &models.CommunityMember{
			CommunityID: community.ID,
			UserID:      creatorID,
			Role:        models.CommunityRoleAdmin,
			JoinedAt:    now,
		}); err != nil {
			return err
		}
		for i, u := range invitees {
			if _, err := s.communities.AddMember(ctx, &models.CommunityMember{
				CommunityID: community.ID,
				UserID:      u.ID,
				Role:        models.CommunityRoleMember,
				// Keeps the invite order as the succession order.
				JoinedAt: now.Add(time.Duration(i+1) * time.Microsecond),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(picture) > 0 {
		if err := s.setPicture(ctx, community.ID, picture); err != nil {
			logSideEffect(ctx, "community picture upload", err, slog.Uint64("community_id", uint64(community.ID)))
		}
	}
	for i := range invitees {
		s.notifyAdded(ctx, creator, invitees[i].ID, community)
	}
	emit(ctx, s.events, events.Event{Type: events.CommunityCreated, ActorID: creatorID, SubjectID: community.ID})
	return s.communities.GetByID(ctx, community.ID)
}

// resolveInvitees drops the creator, duplicates and unknown or blocked users.
func (s *CommunityService) resolveInvitees(ctx context.Context, actorID uint, ids []uint) ([]models.User, error) {
	seen := make(map[uint]bool, len(ids))
	var want []uint
	for _, id := range ids {
		if id == 0 || id == actorID || seen[id] {
			continue
		}
		seen[id] = true
		want = append(want, id)
	}
	if len(want) == 0 {
		return nil, nil
	}
	found, err := s.users.GetByIDs(ctx, want)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.User, len(found))
	for _, u := range found {
		if !u.IsBlocked {
			byID[u.ID] = u
		}
	}
	out := make([]models.User, 0, len(byID))
	for _, id := range want {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *CommunityService) notifyAdded(ctx context.Context, actor *models.User, userID uint, c *models.Community) {
	n := FromActor(actor, userID, models.NotificationCommunity, models.NotificationTypeCommunityAdded,
		fmt.Sprintf("%s added you to %s", actor.DisplayName, c.Name), c.ID)
	logSideEffect(ctx, "community notification", s.notifications.Notify(ctx, n),
		slog.Uint64("community_id", uint64(c.ID)))
}

func (s *CommunityService) setPicture(ctx context.Context, communityID uint, data []byte) error {
	if s.media == nil {
		return models.NewUnavailableError("Media storage not configured", nil)
	}
	url, err := s.media.UploadPicture(ctx, fmt.Sprintf("communities/%d", communityID), data)
	if err != nil {
		return mediaError(err)
	}
	return s.communities.UpdateFields(ctx, communityID, map[string]any{"picture": url})
}

// GetCommunities lists joinable communities: not banned and not joined by userID.
func (s *CommunityService) GetCommunities(ctx context.Context, userID uint, search string) ([]models.Community, error) {
	return s.communities.Search(ctx, repository.CommunityQuery{
		Search:          search,
		ExcludeMemberID: userID,
		Limit:           communitySearchLimit,
	})
}

func (s *CommunityService) GetCommunityByID(ctx context.Context, communityID uint) (*models.Community, error) {
	return s.communities.GetByID(ctx, communityID)
}

func (s *CommunityService) GetMyCommunities(ctx context.Context, userID uint) ([]models.Community, error) {
	return s.communities.ListForUser(ctx, userID)
}

// Join adds userID as a plain member. The private flag does not restrict joining.
func (s *CommunityService) Join(ctx context.Context, userID, communityID uint) error {
	c, err := s.communities.GetByID(ctx, communityID)
	if err != nil {
		return err
	}
	if c.IsBanned {
		return models.NewForbiddenError("This community has been banned")
	}
	added, err := s.communities.AddMember(ctx, &models.CommunityMember{
		CommunityID: communityID,
		UserID:      userID,
		Role:        models.CommunityRoleMember,
		JoinedAt:    s.now(),
	})
	if err != nil {
		return err
	}
	if !added {
		return models.NewValidationError("User is already a member of this community")
	}
	return nil
}

// GetCommunityMembers returns the admin and the plain members in join order.
func (s *CommunityService) GetCommunityMembers(ctx context.Context, communityID uint) (*models.CommunityMembers, error) {
	if _, err := s.communities.GetByID(ctx, communityID); err != nil {
		return nil, err
	}
	rows, err := s.communities.ListMembers(ctx, communityID)
	if err != nil {
		return nil, err
	}
	out := &models.CommunityMembers{CommunityID: communityID, Members: []models.MemberEntry{}}
	for i := range rows {
		summary := rows[i].User.Summary()
		if rows[i].Role == models.CommunityRoleAdmin {
			out.Admin = &summary
			continue
		}
		out.Members = append(out.Members, models.MemberEntry{User: summary, JoinedAt: rows[i].JoinedAt})
	}
	return out, nil
}

// mutateMembership runs fn in a transaction that first advances the community's
// membership version. A concurrent writer that advanced it first makes this call
// fail with CONFLICT before anything is written.
func (s *CommunityService) mutateMembership(ctx context.Context, communityID uint, fn func(ctx context.Context) error) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		version, err := s.communities.GetVersion(ctx, communityID)
		if err != nil {
			return err
		}
		ok, err := s.communities.BumpVersion(ctx, communityID, version)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewConflictError("Community membership changed, please retry")
		}
		return fn(ctx)
	})
}

func (s *CommunityService) requireAdmin(ctx context.Context, communityID, actorID uint) error {
	admin, err := s.communities.GetAdmin(ctx, communityID)
	if err != nil {
		return err
	}
	if admin == nil || admin.UserID != actorID {
		return models.NewForbiddenError("Only the community admin can do this")
	}
	return nil
}

// Leave removes userID from the community. When the admin leaves, the earliest
// joined member takes over; with nobody left to take over it fails with NO_SUCCESSOR.
func (s *CommunityService) Leave(ctx context.Context, userID, communityID uint) error {
	var successorID uint
	err := s.mutateMembership(ctx, communityID, func(ctx context.Context) error {
		member, err := s.communities.GetMember(ctx, communityID, userID)
		if err != nil {
			return err
		}
		if member == nil {
			return models.NewAppError(models.CodeNotFound, "You are not a member of this community")
		}

		if member.Role == models.CommunityRoleAdmin {
			successor, err := s.communities.FindSuccessor(ctx, communityID, userID)
			if err != nil {
				return err
			}
			if successor == nil {
				return models.NewAppError(models.CodeNoSuccessor, "Admin cannot leave a community with no other members")
			}
			successorID = successor.UserID
		}

		// The leaver's row goes first so there is never a second admin row.
		if _, err := s.communities.RemoveMember(ctx, communityID, userID); err != nil {
			return err
		}
		if successorID != 0 {
			if err := s.communities.SetRole(ctx, communityID, successorID, models.CommunityRoleAdmin, nil); err != nil {
				return err
			}
		}

		left, err := s.communities.CountMemberRows(ctx, communityID, userID)
		if err != nil {
			return err
		}
		if left != 0 {
			return models.NewInternalError(fmt.Errorf("community %d still references user %d after leave", communityID, userID))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if successorID != 0 {
		s.afterAdminChange(ctx, communityID, userID, successorID, "leave")
	}
	return nil
}

// MakeAdmin hands the admin role from actorID to targetID. The old admin stays as
// a plain member who counts as newly joined.
func (s *CommunityService) MakeAdmin(ctx context.Context, actorID, targetID, communityID uint) error {
	if actorID == targetID {
		return models.NewValidationError("You are already the admin")
	}
	err := s.mutateMembership(ctx, communityID, func(ctx context.Context) error {
		if err := s.requireAdmin(ctx, communityID, actorID); err != nil {
			return err
		}
		target, err := s.communities.GetMember(ctx, communityID, targetID)
		if err != nil {
			return err
		}
		if target == nil {
			return models.NewNotFoundError("Community member", targetID)
		}
		now := s.now()
		if err := s.communities.SetRole(ctx, communityID, actorID, models.CommunityRoleMember, &now); err != nil {
			return err
		}
		return s.communities.SetRole(ctx, communityID, targetID, models.CommunityRoleAdmin, nil)
	})
	if err != nil {
		return err
	}
	s.afterAdminChange(ctx, communityID, actorID, targetID, "transfer")
	return nil
}

func (s *CommunityService) afterAdminChange(ctx context.Context, communityID, fromID, toID uint, cause string) {
	observability.CommunityAdminChanges.WithLabelValues(cause).Inc()
	middleware.Logger.InfoContext(ctx, "community admin changed",
		slog.Uint64("community_id", uint64(communityID)),
		slog.Uint64("from", uint64(fromID)),
		slog.Uint64("to", uint64(toID)),
		slog.String("cause", cause),
	)
	emit(ctx, s.events, events.Event{
		Type:      events.CommunityAdmin,
		ActorID:   fromID,
		SubjectID: communityID,
		Data:      map[string]any{"new_admin": toID, "cause": cause},
	})

	c, err := s.communities.GetByID(ctx, communityID)
	if err != nil {
		logSideEffect(ctx, "admin change notification", err)
		return
	}
	n := &models.Notification{
		UserID:   toID,
		Category: models.NotificationCommunity,
		Type:     models.NotificationTypeCommunityAdmin,
		Message:  fmt.Sprintf("You are now the admin of %s", c.Name),
		RefID:    communityID,
	}
	if actor, err := s.users.GetByID(ctx, fromID); err == nil {
		n = FromActor(actor, toID, n.Category, n.Type, n.Message, n.RefID)
	}
	logSideEffect(ctx, "admin change notification", s.notifications.Notify(ctx, n))
}

// RemoveMember lets the admin remove another member.
func (s *CommunityService) RemoveMember(ctx context.Context, actorID, communityID, targetID uint) error {
	if actorID == targetID {
		return models.NewValidationError("Admin cannot remove themselves")
	}
	return s.mutateMembership(ctx, communityID, func(ctx context.Context) error {
		if err := s.requireAdmin(ctx, communityID, actorID); err != nil {
			return err
		}
		n, err := s.communities.RemoveMember(ctx, communityID, targetID)
		if err != nil {
			return err
		}
		if n == 0 {
			return models.NewNotFoundError("Community member", targetID)
		}
		return nil
	})
}

// AddMembers lets the admin add users directly. It returns the ids actually added.
func (s *CommunityService) AddMembers(ctx context.Context, actorID, communityID uint, userIDs []uint) ([]uint, error) {
	c, err := s.communities.GetByID(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if c.IsBanned {
		return nil, models.NewForbiddenError("This community has been banned")
	}
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	invitees, err := s.resolveInvitees(ctx, actorID, userIDs)
	if err != nil {
		return nil, err
	}

	added := []uint{}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.requireAdmin(ctx, communityID, actorID); err != nil {
			return err
		}
		now := s.now()
		for i, u := range invitees {
			ok, err := s.communities.AddMember(ctx, &models.CommunityMember{
				CommunityID: communityID,
				UserID:      u.ID,
				Role:        models.CommunityRoleMember,
				JoinedAt:    now.Add(time.Duration(i) * time.Microsecond),
			})
			if err != nil {
				return err
			}
			if ok {
				added = append(added, u.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, id := range added {
		s.notifyAdded(ctx, actor, id, c)
	}
	return added, nil
}

// UpdateCommunity edits metadata and optionally replaces the picture. Admin only.
func (s *CommunityService) UpdateCommunity(ctx context.Context, actorID, communityID uint, in CommunityUpdate, picture []byte) (*models.Community, error) {
	c, err := s.communities.GetByID(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, communityID, actorID); err != nil {
		return nil, err
	}

	name, description, tags := c.Name, c.Description, c.Hashtags
	fields := map[string]any{}
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
		fields["name"] = name
	}
	if in.Description != nil {
		description = *in.Description
		fields["description"] = content.Sanitize(description)
	}
	if in.Hashtags != nil {
		tags = content.NormalizeTags(*in.Hashtags)
		fields["hashtags"] = tags
	}
	if in.IsPrivate != nil {
		fields["is_private"] = *in.IsPrivate
	}
	if err := validation.ValidateCommunity(name, description, tags); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if len(fields) > 0 {
		if err := s.communities.UpdateFields(ctx, communityID, fields); err != nil {
			return nil, err
		}
	}
	if len(picture) > 0 {
		if err := s.setPicture(ctx, communityID, picture); err != nil {
			return nil, err
		}
	}
	return s.communities.GetByID(ctx, communityID)
}

func (s *CommunityService) requireMember(ctx context.Context, communityID, userID uint) (*models.Community, error) {
	c, err := s.communities.GetByID(ctx, communityID)
	if err != nil {
		return nil, err
	}
	m, err := s.communities.GetMember(ctx, communityID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, models.NewForbiddenError("You are not a member of this community")
	}
	return c, nil
}

// SendMessage posts to the community group chat. Members only.
func (s *CommunityService) SendMessage(ctx context.Context, userID, communityID uint, in MessageInput) (*models.CommunityMessage, error) {
	if err := in.normalize(); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	c, err := s.requireMember(ctx, communityID, userID)
	if err != nil {
		return nil, err
	}
	if c.IsBanned {
		return nil, models.NewForbiddenError("This community has been banned")
	}
	msg := &models.CommunityMessage{
		CommunityID: communityID,
		SenderID:    userID,
		Content:     in.Content,
		FileURL:     in.FileURL,
		FileType:    in.FileType,
	}
	if err := s.communities.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	if s.realtime != nil {
		logSideEffect(ctx, "community message push", s.realtime.PublishCommunityMessage(ctx, msg),
			slog.Uint64("community_id", uint64(communityID)))
	}
	return msg, nil
}

func (s *CommunityService) GetMessages(ctx context.Context, userID, communityID uint, limit int, beforeID uint) ([]models.CommunityMessage, error) {
	if _, err := s.requireMember(ctx, communityID, userID); err != nil {
		return nil, err
	}
	return s.communities.ListMessages(ctx, communityID, limit, beforeID)
}
