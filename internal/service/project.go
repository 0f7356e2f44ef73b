package service

import (
	"context"
	"fmt"

	"github.com/quillhq/quillfeed/internal/gate"
	"github.com/quillhq/quillfeed/internal/models"
)

// viewerFacts holds the batch lookups needed to project a set of posts
type viewerFacts struct {
	names      map[int64]string
	likes      map[int64]int64
	comments   map[int64]int64
	liked      map[int64]bool
	bookmarked map[int64]bool
	paid       map[int64]bool
}

// project gates posts for viewerID. Collaborator lookups are batched, one
// call per fact for the whole slice.
func (s *PostService) project(ctx context.Context, posts []*models.Post, viewerID int64) ([]gate.Projection, error) {
	projections := make([]gate.Projection, 0, len(posts))
	if len(posts) == 0 {
		return projections, nil
	}

	facts, err := s.loadFacts(ctx, posts, viewerID)
	if err != nil {
		return nil, err
	}

	for _, post := range posts {
		projections = append(projections, gate.Project(post, gate.Input{
			ViewerID:     viewerID,
			Paid:         facts.paid[post.ID],
			AuthorName:   facts.names[post.AuthorID],
			LikeCount:    facts.likes[post.ID],
			CommentCount: facts.comments[post.ID],
			Liked:        facts.liked[post.ID],
			Bookmarked:   facts.bookmarked[post.ID],
		}))
	}
	return projections, nil
}

func (s *PostService) loadFacts(ctx context.Context, posts []*models.Post, viewerID int64) (*viewerFacts, error) {
	postIDs := make([]int64, 0, len(posts))
	var authorIDs, payable []int64
	seenAuthor := make(map[int64]bool)
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
		if !seenAuthor[p.AuthorID] {
			seenAuthor[p.AuthorID] = true
			authorIDs = append(authorIDs, p.AuthorID)
		}
		if gate.NeedsPaymentCheck(p, viewerID) {
			payable = append(payable, p.ID)
		}
	}

	facts := &viewerFacts{
		liked:      map[int64]bool{},
		bookmarked: map[int64]bool{},
		paid:       map[int64]bool{},
	}

	var err error
	if facts.names, err = s.Authors.Names(ctx, authorIDs); err != nil {
		return nil, fmt.Errorf("failed to load author names: %w", err)
	}
	if facts.likes, err = s.Reactions.LikeCounts(ctx, postIDs); err != nil {
		return nil, fmt.Errorf("failed to load like counts: %w", err)
	}
	if facts.comments, err = s.Reactions.CommentCounts(ctx, postIDs); err != nil {
		return nil, fmt.Errorf("failed to load comment counts: %w", err)
	}

	if viewerID == models.AnonymousViewer {
		return facts, nil
	}

	if facts.liked, err = s.Reactions.LikedBy(ctx, viewerID, postIDs); err != nil {
		return nil, fmt.Errorf("failed to load likes: %w", err)
	}
	if facts.bookmarked, err = s.Reactions.BookmarkedBy(ctx, viewerID, postIDs); err != nil {
		return nil, fmt.Errorf("failed to load bookmarks: %w", err)
	}
	if len(payable) > 0 {
		if facts.paid, err = s.Payments.PaidPostIDs(ctx, viewerID, payable); err != nil {
			return nil, fmt.Errorf("failed to load payments: %w", err)
		}
	}
	return facts, nil
}
