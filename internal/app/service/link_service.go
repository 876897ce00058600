package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/PowerInvite/internal/app/model"
	"github.com/sifan077/PowerInvite/internal/app/repository"
	"go.uber.org/zap"
)

var (
	// ErrLinkRevoked signals an operation that needs an active link.
	ErrLinkRevoked = errors.New("link is revoked")
	// ErrLinkNotRevoked signals a delete of a link that is still active.
	ErrLinkNotRevoked = errors.New("link is not revoked")
	// ErrPermanentLink signals an edit of the permanent link, which has no editable attributes.
	ErrPermanentLink = errors.New("permanent link cannot be edited")
	// ErrLinkUnusable signals a join through a revoked, expired or exhausted link.
	ErrLinkUnusable = errors.New("link can no longer be used")
	// ErrInvalidInput signals input that fails validation.
	ErrInvalidInput = errors.New("invalid input")
)

const maxTitleLength = 32

// LinkService defines behaviour-level operations on invite links.
type LinkService interface {
	CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error)
	GetLink(ctx context.Context, id string) (*model.Link, error)
	ListLinks(ctx context.Context, input ListLinksInput) ([]model.Link, error)
	ListAdmins(ctx context.Context, input ListAdminsInput) ([]model.Admin, error)
	EnsurePermanentLink(ctx context.Context, resourceID, adminID string) (*model.Link, error)
	UpdateLink(ctx context.Context, id string, input UpdateLinkInput) (*model.Link, error)
	RevokeLink(ctx context.Context, id string) (*RevokeOutcome, error)
	DeleteLink(ctx context.Context, id string) error
	DeleteRevokedLinks(ctx context.Context, resourceID, adminID string) (int64, error)
	JoinLink(ctx context.Context, token string) (*model.Link, error)
	LinkID(token string) string
}

// EventPublisher receives link events once the change is stored.
type EventPublisher interface {
	Publish(ctx context.Context, event model.LinkEvent) error
}

// LinkServiceDeps wires a LinkService.
type LinkServiceDeps struct {
	Links  repository.LinkRepository
	Admins repository.AdminRepository
	// Events is optional.
	Events EventPublisher
	// Tokens defaults to a fresh TokenGenerator.
	Tokens  *TokenGenerator
	BaseURL string
	Logger  *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type linkService struct {
	links   repository.LinkRepository
	admins  repository.AdminRepository
	events  EventPublisher
	tokens  *TokenGenerator
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
}

// NewLinkService returns a service implementation backed by the given repositories.
func NewLinkService(deps LinkServiceDeps) LinkService {
	s := &linkService{
		links:   deps.Links,
		admins:  deps.Admins,
		events:  deps.Events,
		tokens:  deps.Tokens,
		baseURL: strings.TrimRight(deps.BaseURL, "/"),
		logger:  deps.Logger,
		now:     deps.Now,
	}
	if s.tokens == nil {
		s.tokens = NewTokenGenerator(0)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateLinkInput captures data required to create a link.
type CreateLinkInput struct {
	ResourceID    string
	AdminID       string
	Title         string
	ExpiresAt     *time.Time
	UsageLimit    *int
	RequestNeeded bool
}

// UpdateLinkInput captures fields that can be changed on an existing link.
type UpdateLinkInput struct {
	Title         *string
	ExpiresAt     *time.Time
	UsageLimit    *int
	RequestNeeded *bool
}

// ListLinksInput selects one page of active or revoked links. The first active page, the one
// without AfterDate, starts with the permanent link when there is one.
type ListLinksInput struct {
	ResourceID string
	AdminID    string
	Revoked    bool
	AfterKey   string
	AfterDate  *time.Time
	Limit      int
}

// ListAdminsInput selects one page of the admins of a resource other than the viewer.
type ListAdminsInput struct {
	ResourceID string
	ViewerID   string
	AfterID    string
	Limit      int
}

// RevokeOutcome is the result of a revocation. Replacement is set when a permanent link was
// revoked and a new permanent link took its place.
type RevokeOutcome struct {
	Link        *model.Link
	Replacement *model.Link
}

func (s *linkService) LinkID(token string) string {
	return s.baseURL + "/join/" + token
}

func (s *linkService) newLink(resourceID, adminID string) (*model.Link, error) {
	token, err := s.tokens.Next()
	if err != nil {
		return nil, err
	}
	return &model.Link{ID: s.LinkID(token), ResourceID: resourceID, AdminID: adminID}, nil
}

func (s *linkService) CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error) {
	if input.ResourceID == "" || input.AdminID == "" {
		return nil, fmt.Errorf("%w: resource and admin are required", ErrInvalidInput)
	}
	if err := validate(input.Title, input.UsageLimit); err != nil {
		return nil, err
	}

	link, err := s.newLink(input.ResourceID, input.AdminID)
	if err != nil {
		return nil, fmt.Errorf("generate link: %w", err)
	}
	link.Title = input.Title
	link.ExpiresAt = input.ExpiresAt
	link.UsageLimit = input.UsageLimit
	link.RequestNeeded = input.RequestNeeded

	if err := s.links.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("create link: %w", err)
	}
	s.publish(ctx, model.LinkEventCreated, link, "")
	return link, nil
}

func (s *linkService) GetLink(ctx context.Context, id string) (*model.Link, error) {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

func (s *linkService) ListLinks(ctx context.Context, input ListLinksInput) ([]model.Link, error) {
	links, err := s.links.List(ctx, repository.LinkFilter{
		ResourceID: input.ResourceID,
		AdminID:    input.AdminID,
		Revoked:    input.Revoked,
		AfterKey:   input.AfterKey,
		AfterDate:  input.AfterDate,
		Limit:      input.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	if input.Revoked || input.AfterDate != nil {
		return links, nil
	}

	permanent, err := s.links.GetPermanent(ctx, input.ResourceID, input.AdminID)
	switch {
	case errors.Is(err, repository.ErrLinkNotFound):
		return links, nil
	case err != nil:
		return nil, fmt.Errorf("load permanent link: %w", err)
	}
	return append([]model.Link{*permanent}, links...), nil
}

func (s *linkService) ListAdmins(ctx context.Context, input ListAdminsInput) ([]model.Admin, error) {
	admins, err := s.admins.ListWithInvites(ctx, repository.AdminFilter{
		ResourceID:     input.ResourceID,
		ExcludeAdminID: input.ViewerID,
		AfterID:        input.AfterID,
		Limit:          input.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

func (s *linkService) EnsurePermanentLink(ctx context.Context, resourceID, adminID string) (*model.Link, error) {
	link, err := s.links.GetPermanent(ctx, resourceID, adminID)
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, repository.ErrLinkNotFound) {
		return nil, fmt.Errorf("load permanent link: %w", err)
	}

	link, err = s.newLink(resourceID, adminID)
	if err != nil {
		return nil, fmt.Errorf("generate link: %w", err)
	}
	link.IsPermanent = true
	if err := s.links.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("create permanent link: %w", err)
	}
	s.publish(ctx, model.LinkEventCreated, link, "")
	return link, nil
}

// UpdateLink applies the given fields. A usage limit that is already reached revokes the link.
func (s *linkService) UpdateLink(ctx context.Context, id string, input UpdateLinkInput) (*model.Link, error) {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load link: %w", err)
	}
	if link.IsRevoked {
		return nil, ErrLinkRevoked
	}
	if link.IsPermanent {
		return nil, ErrPermanentLink
	}

	if input.Title != nil {
		link.Title = *input.Title
	}
	if input.ExpiresAt != nil {
		if input.ExpiresAt.IsZero() {
			link.ExpiresAt = nil
		} else {
			link.ExpiresAt = input.ExpiresAt
		}
		link.IsExpired = link.ExpiresAt != nil && !link.ExpiresAt.After(s.now())
	}
	if input.UsageLimit != nil {
		if *input.UsageLimit == 0 {
			link.UsageLimit = nil
		} else {
			link.UsageLimit = input.UsageLimit
		}
	}
	if input.RequestNeeded != nil {
		link.RequestNeeded = *input.RequestNeeded
	}
	if err := validate(link.Title, link.UsageLimit); err != nil {
		return nil, err
	}
	if link.LimitReached() {
		link.IsRevoked = true
	}

	if err := s.links.Update(ctx, link); err != nil {
		return nil, fmt.Errorf("update link: %w", err)
	}
	event := model.LinkEventEdited
	if link.IsRevoked {
		event = model.LinkEventRevoked
	}
	s.publish(ctx, event, link, "")
	return link, nil
}

// RevokeLink revokes a link. A permanent link is replaced by a fresh permanent link in the same
// transaction.
func (s *linkService) RevokeLink(ctx context.Context, id string) (*RevokeOutcome, error) {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load link: %w", err)
	}
	if link.IsRevoked {
		return nil, ErrLinkRevoked
	}

	if !link.IsPermanent {
		revoked, err := s.links.Revoke(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("revoke link: %w", err)
		}
		s.publish(ctx, model.LinkEventRevoked, revoked, "")
		return &RevokeOutcome{Link: revoked}, nil
	}

	next, err := s.newLink(link.ResourceID, link.AdminID)
	if err != nil {
		return nil, fmt.Errorf("generate link: %w", err)
	}
	next.IsPermanent = true
	old, err := s.links.ReplacePermanent(ctx, id, next)
	if err != nil {
		return nil, fmt.Errorf("replace permanent link: %w", err)
	}
	s.publish(ctx, model.LinkEventReplaced, old, next.ID)
	s.publish(ctx, model.LinkEventCreated, next, "")
	return &RevokeOutcome{Link: old, Replacement: next}, nil
}

func (s *linkService) DeleteLink(ctx context.Context, id string) error {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load link: %w", err)
	}
	if !link.IsRevoked {
		return ErrLinkNotRevoked
	}
	if err := s.links.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	s.publish(ctx, model.LinkEventDeleted, link, "")
	return nil
}

func (s *linkService) DeleteRevokedLinks(ctx context.Context, resourceID, adminID string) (int64, error) {
	n, err := s.links.DeleteRevoked(ctx, resourceID, adminID)
	if err != nil {
		return 0, fmt.Errorf("delete revoked links: %w", err)
	}
	s.logger.Info("revoked links deleted",
		zap.String("resource_id", resourceID),
		zap.String("admin_id", adminID),
		zap.Int64("count", n))
	return n, nil
}

// JoinLink admits one user through the link with the given token. Links that need approval count
// a join request instead of a use.
func (s *linkService) JoinLink(ctx context.Context, token string) (*model.Link, error) {
	link, err := s.links.RecordJoin(ctx, s.LinkID(token), s.now())
	switch {
	case errors.Is(err, repository.ErrLinkChanged):
		return nil, ErrLinkUnusable
	case err != nil:
		return nil, fmt.Errorf("join link: %w", err)
	}
	s.publish(ctx, model.LinkEventJoined, link, "")
	return link, nil
}

func (s *linkService) publish(ctx context.Context, typ string, link *model.Link, replacedBy string) {
	if s.events == nil || link == nil {
		return
	}
	event := model.LinkEvent{
		ID:         uuid.New().String(),
		Type:       typ,
		LinkID:     link.ID,
		ResourceID: link.ResourceID,
		AdminID:    link.AdminID,
		ReplacedBy: replacedBy,
		Timestamp:  s.now(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish link event",
			zap.String("type", typ),
			zap.String("link_id", link.ID),
			zap.Error(err))
	}
}

func validate(title string, usageLimit *int) error {
	if len([]rune(title)) > maxTitleLength {
		return fmt.Errorf("%w: title longer than %d characters", ErrInvalidInput, maxTitleLength)
	}
	if usageLimit != nil && *usageLimit < 0 {
		return fmt.Errorf("%w: negative usage limit", ErrInvalidInput)
	}
	return nil
}
