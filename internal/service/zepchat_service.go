package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"zephyr/internal/content"
	"zephyr/internal/events"
	"zephyr/internal/models"
	"zephyr/internal/repository"
	"zephyr/internal/validation"
)

// ZepchatInput is the payload for creating a forum post.
type ZepchatInput struct {
	Heading string   `json:"heading"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// ZepchatUpdate is a partial edit of a post.
type ZepchatUpdate struct {
	Heading *string   `json:"heading"`
	Content *string   `json:"content"`
	Tags    *[]string `json:"tags"`
}

// ZepchatService runs the forum: posts, replies and votes.
type ZepchatService struct {
	zepchats      repository.ZepchatRepository
	votes         repository.VoteRepository
	users         repository.UserRepository
	tx            repository.Transactor
	notifications *NotificationService
	events        EventPublisher
}

func NewZepchatService(
	zepchats repository.ZepchatRepository,
	votes repository.VoteRepository,
	users repository.UserRepository,
	tx repository.Transactor,
	notifications *NotificationService,
	events EventPublisher,
) *ZepchatService {
	return &ZepchatService{
		zepchats:      zepchats,
		votes:         votes,
		users:         users,
		tx:            tx,
		notifications: notifications,
		events:        events,
	}
}

func render(z *models.Zepchat) *models.Zepchat {
	z.ContentHTML = content.RenderMarkdown(z.Content)
	return z
}

func renderList(zs []models.Zepchat) []models.Zepchat {
	for i := range zs {
		render(&zs[i])
	}
	return zs
}

func renderReplies(rs []models.ZepReply) []models.ZepReply {
	for i := range rs {
		rs[i].ContentHTML = content.RenderMarkdown(rs[i].Content)
	}
	return rs
}

func (s *ZepchatService) Create(ctx context.Context, authorID uint, in ZepchatInput) (*models.Zepchat, error) {
	in.Heading = content.PlainText(strings.TrimSpace(in.Heading))
	if err := validation.ValidateZepchat(in.Heading, in.Content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	author, err := s.users.GetByID(ctx, authorID)
	if err != nil {
		return nil, err
	}
	z := &models.Zepchat{
		Heading:        in.Heading,
		Content:        content.Sanitize(in.Content),
		Tags:           content.NormalizeTags(in.Tags),
		AuthorSnapshot: models.SnapshotOf(author),
	}
	if err := s.zepchats.Create(ctx, z); err != nil {
		return nil, err
	}
	emit(ctx, s.events, events.Event{Type: events.ZepchatCreated, ActorID: authorID, SubjectID: z.ID})
	return s.Get(ctx, z.ID, authorID)
}

// List returns posts newest first, filtered by search over heading, content and tags.
func (s *ZepchatService) List(ctx context.Context, viewerID uint, search string, limit, offset int) ([]models.Zepchat, error) {
	zs, err := s.zepchats.List(ctx, repository.ZepchatQuery{
		Search:   search,
		ViewerID: viewerID,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, err
	}
	return renderList(zs), nil
}

func (s *ZepchatService) GetMine(ctx context.Context, authorID uint) ([]models.Zepchat, error) {
	zs, err := s.zepchats.List(ctx, repository.ZepchatQuery{AuthorID: authorID, ViewerID: authorID, Limit: 100})
	if err != nil {
		return nil, err
	}
	return renderList(zs), nil
}

func (s *ZepchatService) Get(ctx context.Context, id, viewerID uint) (*models.Zepchat, error) {
	z, err := s.zepchats.GetByID(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	return render(z), nil
}

func (s *ZepchatService) requireAuthor(ctx context.Context, id, userID uint) error {
	z, err := s.zepchats.GetByID(ctx, id, 0)
	if err != nil {
		return err
	}
	if z.AuthorID != userID {
		return models.NewForbiddenError("Only the author can modify this zepchat")
	}
	return nil
}

// Update edits a post. Author only.
func (s *ZepchatService) Update(ctx context.Context, userID, id uint, in ZepchatUpdate) (*models.Zepchat, error) {
	if err := s.requireAuthor(ctx, id, userID); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if in.Heading != nil {
		heading := content.PlainText(strings.TrimSpace(*in.Heading))
		if err := validation.ValidateHeading(heading); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["heading"] = heading
	}
	if in.Content != nil {
		if err := validation.ValidateBody(*in.Content); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["content"] = content.Sanitize(*in.Content)
	}
	if in.Tags != nil {
		fields["tags"] = content.NormalizeTags(*in.Tags)
	}
	if len(fields) == 0 {
		return nil, models.NewValidationError("Nothing to update")
	}
	if err := s.zepchats.UpdateFields(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, id, userID)
}

// Delete removes a post with its replies and every vote on them. Author only.
func (s *ZepchatService) Delete(ctx context.Context, userID, id uint) error {
	if err := s.requireAuthor(ctx, id, userID); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.zepchats.Delete(ctx, id)
	})
}

// PostReply adds a reply and notifies the post's author.
func (s *ZepchatService) PostReply(ctx context.Context, userID, zepchatID uint, body string) (*models.ZepReply, error) {
	if err := validation.ValidateBody(body); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	z, err := s.zepchats.GetByID(ctx, zepchatID, 0)
	if err != nil {
		return nil, err
	}
	author, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	reply := &models.ZepReply{
		ZepchatID:      zepchatID,
		Content:        content.Sanitize(body),
		AuthorSnapshot: models.SnapshotOf(author),
	}
	if err := s.zepchats.CreateReply(ctx, reply); err != nil {
		return nil, err
	}
	if z.AuthorID != userID {
		n := FromActor(author, z.AuthorID, models.NotificationZepchats, models.NotificationTypeZepReply,
			fmt.Sprintf("%s replied to %s", author.DisplayName, z.Heading), zepchatID)
		logSideEffect(ctx, "reply notification", s.notifications.Notify(ctx, n),
			slog.Uint64("zepchat_id", uint64(zepchatID)))
	}
	reply.ContentHTML = content.RenderMarkdown(reply.Content)
	return reply, nil
}

// GetReplies lists replies oldest first.
func (s *ZepchatService) GetReplies(ctx context.Context, zepchatID, viewerID uint) ([]models.ZepReply, error) {
	ok, err := s.zepchats.Exists(ctx, zepchatID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewNotFoundError("Zepchat", zepchatID)
	}
	rs, err := s.zepchats.ListReplies(ctx, zepchatID, viewerID)
	if err != nil {
		return nil, err
	}
	return renderReplies(rs), nil
}

// VoteZepchat applies op to a post and returns its vote tally.
func (s *ZepchatService) VoteZepchat(ctx context.Context, userID, zepchatID uint, op models.VoteType) (*models.VoteTally, error) {
	if !validVoteType(op) {
		return nil, models.NewAppError(models.CodeInvalidVoteType, "Invalid vote type")
	}
	ok, err := s.zepchats.Exists(ctx, zepchatID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewNotFoundError("Zepchat", zepchatID)
	}
	if err := applyVote(ctx, s.votes, models.VoteTargetZepchat, zepchatID, userID, op); err != nil {
		return nil, err
	}
	emit(ctx, s.events, events.Event{
		Type:      events.ZepchatVoted,
		ActorID:   userID,
		SubjectID: zepchatID,
		Data:      map[string]any{"op": string(op)},
	})
	return s.votes.Tally(ctx, models.VoteTargetZepchat, zepchatID)
}

// VoteReply applies op to a reply and returns its vote tally.
func (s *ZepchatService) VoteReply(ctx context.Context, userID, replyID uint, op models.VoteType) (*models.VoteTally, error) {
	if !validVoteType(op) {
		return nil, models.NewAppError(models.CodeInvalidVoteType, "Invalid vote type")
	}
	ok, err := s.zepchats.ReplyExists(ctx, replyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewNotFoundError("Reply", replyID)
	}
	if err := applyVote(ctx, s.votes, models.VoteTargetReply, replyID, userID, op); err != nil {
		return nil, err
	}
	emit(ctx, s.events, events.Event{
		Type:      events.ReplyVoted,
		ActorID:   userID,
		SubjectID: replyID,
		Data:      map[string]any{"op": string(op)},
	})
	return s.votes.Tally(ctx, models.VoteTargetReply, replyID)
}
