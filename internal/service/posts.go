// Package service composes feeds, gating, views and post mutations into the
// operations exposed over the API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/quillhq/quillfeed/internal/apperrors"
	"github.com/quillhq/quillfeed/internal/cache"
	"github.com/quillhq/quillfeed/internal/events"
	"github.com/quillhq/quillfeed/internal/feed"
	"github.com/quillhq/quillfeed/internal/gate"
	"github.com/quillhq/quillfeed/internal/models"
	"github.com/quillhq/quillfeed/internal/tags"
	"github.com/quillhq/quillfeed/pkg/logging"
	"github.com/quillhq/quillfeed/pkg/telemetry"
)

const (
	maxTitleLength = 255
	tagUsageKey    = "tags:usage"
)

// Deps are the collaborators of a PostService. Cache and Events may be nil.
type Deps struct {
	Posts     PostReader
	Writer    PostWriter
	Views     ViewRecorder
	Tags      *tags.Resolver
	TagUsage  TagUsage
	Planner   *feed.Planner
	Payments  Payments
	Follows   FollowGraph
	Roles     Roles
	Reactions Reactions
	Authors   Authors
	Cache     Cache
	Events    events.Publisher
	TagTTL    time.Duration
}

// PostService implements the post operations
type PostService struct {
	Deps
	logger *zap.Logger
	now    func() time.Time
}

// NewPostService creates a new post service
func NewPostService(deps Deps) *PostService {
	if deps.Events == nil {
		deps.Events = events.NopPublisher{}
	}
	return &PostService{
		Deps:   deps,
		logger: logging.WithComponent("post-service"),
		now:    time.Now,
	}
}

// FeedRequest is a public feed request. Sort is parsed leniently.
type FeedRequest struct {
	Search string `json:"search"`
	Tag    string `json:"tag"`
	Sort   string `json:"sort"`
	Page   int    `json:"page"`
	Size   int    `json:"size"`
}

// PostInput carries the editable fields of a post
type PostInput struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	IsPremium   bool     `json:"is_premium"`
	Price       int64    `json:"price"`
	Tags        []string `json:"tags"`
	SaveAsDraft bool     `json:"save_as_draft"`
}

func (in *PostInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return apperrors.Invalid("title is required")
	}
	if utf8.RuneCountInString(in.Title) > maxTitleLength {
		return apperrors.Invalid("title exceeds %d characters", maxTitleLength)
	}
	if strings.TrimSpace(in.Content) == "" {
		return apperrors.Invalid("content is required")
	}
	if in.Price < 0 {
		return apperrors.Invalid("price must not be negative")
	}
	if in.IsPremium && in.Price == 0 {
		return apperrors.Invalid("premium posts need a positive price")
	}
	if !in.IsPremium {
		in.Price = 0
	}
	return nil
}

func (in *PostInput) status() models.PostStatus {
	if in.SaveAsDraft {
		return models.PostStatusDraft
	}
	return models.PostStatusPublished
}

// ListFeed returns one page of the public feed as seen by viewerID
func (s *PostService) ListFeed(ctx context.Context, req FeedRequest, viewerID int64) (feed.Page[gate.Projection], error) {
	page, err := s.Planner.List(ctx, feed.Query{
		Search: req.Search,
		Tag:    req.Tag,
		Sort:   feed.ParseSort(req.Sort),
		Page:   req.Page,
		Size:   req.Size,
	})
	if err != nil {
		return feed.Page[gate.Projection]{}, err
	}
	return s.projectPage(ctx, page, viewerID)
}

// ListTrending returns published posts by like count
func (s *PostService) ListTrending(ctx context.Context, page, size int, viewerID int64) (feed.Page[gate.Projection], error) {
	ids, err := s.Planner.Trending(ctx, page, size)
	if err != nil {
		return feed.Page[gate.Projection]{}, err
	}
	return s.projectPage(ctx, ids, viewerID)
}

// ListFollowing returns the newest posts of the authors viewerID follows.
// Anonymous viewers follow nobody.
func (s *PostService) ListFollowing(ctx context.Context, viewerID int64, page, size int) (feed.Page[gate.Projection], error) {
	var followed []int64
	if viewerID != models.AnonymousViewer {
		var err error
		followed, err = s.Follows.IDsFollowedBy(ctx, viewerID)
		if err != nil {
			return feed.Page[gate.Projection]{}, fmt.Errorf("failed to load follows: %w", err)
		}
	}
	ids, err := s.Planner.Following(ctx, followed, page, size)
	if err != nil {
		return feed.Page[gate.Projection]{}, err
	}
	return s.projectPage(ctx, ids, viewerID)
}

// GetPost returns a post as seen by viewerID, recording the view first.
// Drafts are visible to their author only.
func (s *PostService) GetPost(ctx context.Context, postID, viewerID int64) (*gate.Projection, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.get")
	defer span.End()

	post, err := s.visiblePost(ctx, postID, viewerID)
	if err != nil {
		return nil, err
	}

	recorded, err := s.Views.Record(ctx, post.ID, viewerID)
	if err != nil {
		logging.FromContext(ctx, s.logger).Warn("Failed to record view",
			zap.Int64("post_id", post.ID),
			zap.Error(err))
	}
	if recorded {
		post.ViewCount++
		telemetry.RecordView(ctx)
	}

	projections, err := s.project(ctx, []*models.Post{post}, viewerID)
	if err != nil {
		return nil, err
	}
	return &projections[0], nil
}

// ListRelated returns posts sharing tags with postID, or the most recent
// other posts when none do
func (s *PostService) ListRelated(ctx context.Context, postID, viewerID int64) ([]gate.Projection, error) {
	post, err := s.visiblePost(ctx, postID, viewerID)
	if err != nil {
		return nil, err
	}
	ids, err := s.Planner.Related(ctx, post)
	if err != nil {
		return nil, err
	}
	posts, err := s.Posts.GetPublishedByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load related posts: %w", err)
	}
	return s.project(ctx, posts, viewerID)
}

// ListDrafts returns the caller's own drafts, newest first
func (s *PostService) ListDrafts(ctx context.Context, authorID int64) ([]gate.Projection, error) {
	if authorID == models.AnonymousViewer {
		return nil, apperrors.ErrAuthRequired
	}
	posts, err := s.Posts.ListByAuthorStatus(ctx, authorID, models.PostStatusDraft)
	if err != nil {
		return nil, fmt.Errorf("failed to load drafts: %w", err)
	}
	return s.project(ctx, posts, authorID)
}

// ListTags returns tags used by published posts, most used first
func (s *PostService) ListTags(ctx context.Context) ([]models.TagUsage, error) {
	if s.Cache != nil {
		var cached []models.TagUsage
		if err := s.Cache.GetJSON(ctx, tagUsageKey, &cached); err == nil {
			return cached, nil
		}
	}

	usage, err := s.TagUsage.ListUsage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	if usage == nil {
		usage = []models.TagUsage{}
	}

	if s.Cache != nil && s.TagTTL > 0 {
		if err := s.Cache.SetJSON(ctx, tagUsageKey, usage, s.TagTTL); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
			s.logger.Warn("Failed to cache tag usage", zap.Error(err))
		}
	}
	return usage, nil
}

// CreatePost creates a post owned by authorID
func (s *PostService) CreatePost(ctx context.Context, authorID int64, in PostInput) (*gate.Projection, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.create")
	defer span.End()

	if authorID == models.AnonymousViewer {
		return nil, apperrors.ErrAuthRequired
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	resolved, err := s.Tags.Resolve(ctx, in.Tags)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	post := &models.Post{
		Title:     in.Title,
		Content:   in.Content,
		AuthorID:  authorID,
		Status:    in.status(),
		IsPremium: in.IsPremium,
		Price:     in.Price,
		CreatedAt: now,
		UpdatedAt: now,
		Tags:      resolved,
	}
	if err := s.Writer.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	logging.FromContext(ctx, s.logger).Info("Created post",
		zap.Int64("post_id", post.ID),
		zap.Int64("author_id", authorID),
		zap.String("status", string(post.Status)))
	s.afterWrite(ctx, events.PostCreated, post)

	return s.projectOne(ctx, post, authorID)
}

// UpdatePost rewrites a post's fields and its whole tag set. Only the
// author may edit.
func (s *PostService) UpdatePost(ctx context.Context, postID, editorID int64, in PostInput) (*gate.Projection, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.update")
	defer span.End()

	if editorID == models.AnonymousViewer {
		return nil, apperrors.ErrAuthRequired
	}
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != editorID {
		return nil, apperrors.ErrNotPostAuthor
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	resolved, err := s.Tags.Resolve(ctx, in.Tags)
	if err != nil {
		return nil, err
	}

	post.Title = in.Title
	post.Content = in.Content
	post.IsPremium = in.IsPremium
	post.Price = in.Price
	post.Status = in.status()
	post.UpdatedAt = s.now().UTC()
	post.Tags = resolved

	if err := s.Writer.UpdatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	logging.FromContext(ctx, s.logger).Info("Updated post", zap.Int64("post_id", post.ID))
	s.afterWrite(ctx, events.PostUpdated, post)

	return s.projectOne(ctx, post, editorID)
}

// DeletePost removes a post and everything attached to it. The author or
// an admin may delete.
func (s *PostService) DeletePost(ctx context.Context, postID, callerID int64) error {
	ctx, span := telemetry.StartSpan(ctx, "posts.delete")
	defer span.End()

	if callerID == models.AnonymousViewer {
		return apperrors.ErrAuthRequired
	}
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != callerID {
		admin, err := s.Roles.IsAdmin(ctx, callerID)
		if err != nil {
			return fmt.Errorf("failed to check role: %w", err)
		}
		if !admin {
			return apperrors.ErrNotAuthorOrAdmin
		}
	}

	if err := s.Writer.DeletePost(ctx, post.ID); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	logging.FromContext(ctx, s.logger).Info("Deleted post",
		zap.Int64("post_id", post.ID),
		zap.Int64("deleted_by", callerID))
	s.afterWrite(ctx, events.PostDeleted, post)
	return nil
}

func (s *PostService) loadPost(ctx context.Context, postID int64) (*models.Post, error) {
	post, err := s.Posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	if post == nil {
		return nil, apperrors.ErrPostNotFound
	}
	return post, nil
}

// visiblePost loads a post, hiding other authors' drafts
func (s *PostService) visiblePost(ctx context.Context, postID, viewerID int64) (*models.Post, error) {
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.IsPublished() && !gate.IsAuthor(post, viewerID) {
		return nil, apperrors.ErrPostNotFound
	}
	return post, nil
}

func (s *PostService) afterWrite(ctx context.Context, eventType string, post *models.Post) {
	if err := s.Planner.Invalidate(ctx); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		s.logger.Warn("Failed to invalidate feed pages", zap.Error(err))
	}
	if s.Cache != nil {
		if err := s.Cache.Delete(ctx, tagUsageKey); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
			s.logger.Warn("Failed to invalidate tag usage", zap.Error(err))
		}
	}
	events.PublishQuietly(ctx, s.Events, eventType, strconv.FormatInt(post.ID, 10), events.PostEvent{
		PostID:   post.ID,
		AuthorID: post.AuthorID,
		Status:   string(post.Status),
		Premium:  post.IsPremium,
		Tags:     post.TagNames(),
	})
}

func (s *PostService) projectOne(ctx context.Context, post *models.Post, viewerID int64) (*gate.Projection, error) {
	projections, err := s.project(ctx, []*models.Post{post}, viewerID)
	if err != nil {
		return nil, err
	}
	return &projections[0], nil
}

// projectPage loads published posts only, so an id from a cached page that
// has since become a draft is dropped.
func (s *PostService) projectPage(ctx context.Context, ids feed.Page[int64], viewerID int64) (feed.Page[gate.Projection], error) {
	posts, err := s.Posts.GetPublishedByIDs(ctx, ids.Content)
	if err != nil {
		return feed.Page[gate.Projection]{}, fmt.Errorf("failed to load feed posts: %w", err)
	}
	projections, err := s.project(ctx, posts, viewerID)
	if err != nil {
		return feed.Page[gate.Projection]{}, err
	}
	return feed.WithContent(ids, projections), nil
}
