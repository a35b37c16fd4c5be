package babble

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/babble-server/internal/core"
	"github.com/vovakirdan/babble-server/internal/store"
)

// DefaultTimelineMax bounds the number of messages returned by TIMELINE.
const DefaultTimelineMax = 16

// Common errors for command handlers.
var (
	ErrCannotFollowSelf = core.NewError(core.ErrCodeBadRequest, "cannot follow yourself")
	ErrNotLoggedIn      = core.NewError(core.ErrCodeNotLoggedIn, "client is not logged in")
)

// Service runs babble commands against the registry and the store.
type Service struct {
	registry    *core.Registry
	store       store.Store
	timelineMax int
	log         *zerolog.Logger
}

// New creates a command service.
func New(reg *core.Registry, st store.Store, timelineMax int, logger *zerolog.Logger) *Service {
	if timelineMax <= 0 {
		timelineMax = DefaultTimelineMax
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		registry:    reg,
		store:       st,
		timelineMax: timelineMax,
		log:         logger,
	}
}

// Execute dispatches cmd to its handler. A nil answer with a nil error means
// the command produces nothing to deliver.
func (s *Service) Execute(ctx context.Context, cmd *core.Command) (*core.Answer, error) {
	switch cmd.Kind {
	case core.CommandLogin:
		return s.login(ctx, cmd)
	case core.CommandPublish:
		return s.publish(ctx, cmd)
	case core.CommandFollow:
		return s.follow(ctx, cmd)
	case core.CommandTimeline:
		return s.timeline(ctx, cmd)
	case core.CommandFollowCount:
		return s.followCount(ctx, cmd)
	case core.CommandRDV:
		return core.OK(cmd, ""), nil
	case core.CommandUnregister:
		return nil, s.unregister(cmd)
	default:
		return nil, core.NewError(core.ErrCodeUnknownCommand, fmt.Sprintf("unknown command id %d", cmd.Kind))
	}
}

// login registers the client and assigns its key to cmd.
func (s *Service) login(ctx context.Context, cmd *core.Command) (*core.Answer, error) {
	name := cmd.Payload
	cmd.Key = core.KeyFor(name)

	if err := s.registry.Insert(&core.ClientBundle{Key: cmd.Key, Name: name, Conn: cmd.Conn}); err != nil {
		return nil, err
	}

	if _, err := s.store.SaveUser(ctx, uint64(cmd.Key), name); err != nil {
		if _, rmErr := s.registry.Remove(cmd.Key); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("client", name).Msg("rollback registration")
		}
		return nil, fmt.Errorf("save user: %w", err)
	}

	s.log.Info().Str("client", name).Stringer("client_key", cmd.Key).Msg("client registered")
	return core.OK(cmd, name+" "+cmd.Key.String()), nil
}

func (s *Service) publish(ctx context.Context, cmd *core.Command) (*core.Answer, error) {
	user, err := s.store.GetUser(ctx, uint64(cmd.Key))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("get author: %w", err)
	}

	msg := &store.Message{AuthorKey: user.Key, Author: user.Name, Body: cmd.Payload}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}

	return core.OK(cmd, strconv.FormatInt(msg.ID, 10)), nil
}

// follow requires the target to be logged in.
func (s *Service) follow(ctx context.Context, cmd *core.Command) (*core.Answer, error) {
	target := cmd.Payload
	targetKey := core.KeyFor(target)
	if targetKey == cmd.Key {
		return nil, ErrCannotFollowSelf
	}

	if _, ok := s.registry.Lookup(targetKey); !ok {
		return nil, core.NewError(core.ErrCodeUnknownUser, fmt.Sprintf("user %q is not registered", target))
	}

	created, err := s.store.Follow(ctx, uint64(cmd.Key), uint64(targetKey))
	if err != nil {
		return nil, fmt.Errorf("follow %q: %w", target, err)
	}
	if !created {
		s.log.Debug().Stringer("client_key", cmd.Key).Str("target", target).Msg("already following")
	}

	return core.OK(cmd, target), nil
}

// timeline returns the newest messages of the client and the clients it follows.
func (s *Service) timeline(ctx context.Context, cmd *core.Command) (*core.Answer, error) {
	following, err := s.store.ListFollowing(ctx, uint64(cmd.Key))
	if err != nil {
		return nil, fmt.Errorf("list following: %w", err)
	}
	authors := append(following, uint64(cmd.Key))

	msgs, err := s.store.ListTimeline(ctx, authors, s.timelineMax)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}

	ans := core.OK(cmd, "")
	ans.Messages = make([]core.Message, 0, len(msgs))
	for _, m := range msgs {
		ans.Messages = append(ans.Messages, core.Message{
			ID:        m.ID,
			Author:    m.Author,
			Text:      m.Body,
			CreatedAt: m.CreatedAt,
		})
	}
	return ans, nil
}

func (s *Service) followCount(ctx context.Context, cmd *core.Command) (*core.Answer, error) {
	n, err := s.store.CountFollowers(ctx, uint64(cmd.Key))
	if err != nil {
		return nil, fmt.Errorf("count followers: %w", err)
	}
	return core.OK(cmd, strconv.Itoa(n)), nil
}

func (s *Service) unregister(cmd *core.Command) error {
	b, err := s.registry.Remove(cmd.Key)
	if err != nil {
		return err
	}
	s.log.Info().Str("client", b.Name).Stringer("client_key", b.Key).Msg("client unregistered")
	return nil
}
