// Package gate builds the viewer-specific view of a post. Premium content is
// withheld from viewers who neither wrote nor bought the post; the gated
// content is the empty string.
package gate

import (
	"strings"
	"time"

	"github.com/quillhq/quillfeed/internal/models"
)

// WordsPerMinute is the reading speed used for reading time estimates
const WordsPerMinute = 200

// Input carries what the gate needs to know about the viewer. ViewerID is
// models.AnonymousViewer for unauthenticated requests. The like, bookmark
// and comment fields come from their owning services and pass through.
type Input struct {
	ViewerID     int64
	Paid         bool
	AuthorName   string
	LikeCount    int64
	CommentCount int64
	Liked        bool
	Bookmarked   bool
}

// Projection is a post as a specific viewer may see it
type Projection struct {
	ID                 int64     `json:"id"`
	Title              string    `json:"title"`
	Content            string    `json:"content"`
	Gated              bool      `json:"gated"`
	AuthorID           int64     `json:"author_id"`
	AuthorName         string    `json:"author_name"`
	Status             string    `json:"status"`
	IsPremium          bool      `json:"is_premium"`
	Price              int64     `json:"price"`
	ViewCount          int64     `json:"view_count"`
	ReadingTimeMinutes int       `json:"reading_time_minutes"`
	Tags               []string  `json:"tags"`
	IsAuthor           bool      `json:"is_author"`
	PaidByViewer       bool      `json:"paid_by_viewer"`
	LikeCount          int64     `json:"like_count"`
	CommentCount       int64     `json:"comment_count"`
	LikedByViewer      bool      `json:"liked_by_viewer"`
	BookmarkedByViewer bool      `json:"bookmarked_by_viewer"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// IsAuthor reports whether viewerID wrote post. Anonymous viewers never do.
func IsAuthor(post *models.Post, viewerID int64) bool {
	return viewerID != models.AnonymousViewer && post.AuthorID == viewerID
}

// CanReadFull reports whether a viewer may see the post's full content
func CanReadFull(post *models.Post, viewerID int64, paid bool) bool {
	if !post.IsPremium {
		return true
	}
	return IsAuthor(post, viewerID) || (viewerID != models.AnonymousViewer && paid)
}

// NeedsPaymentCheck reports whether the paid flag affects the projection,
// letting callers skip the payment lookup otherwise.
func NeedsPaymentCheck(post *models.Post, viewerID int64) bool {
	return post.IsPremium && viewerID != models.AnonymousViewer && !IsAuthor(post, viewerID)
}

// Project builds the projection of post for the viewer described by in
func Project(post *models.Post, in Input) Projection {
	isAuthor := IsAuthor(post, in.ViewerID)
	paid := in.Paid && NeedsPaymentCheck(post, in.ViewerID)
	full := CanReadFull(post, in.ViewerID, paid)

	content := post.Content
	if !full {
		content = ""
	}

	return Projection{
		ID:                 post.ID,
		Title:              post.Title,
		Content:            content,
		Gated:              !full,
		AuthorID:           post.AuthorID,
		AuthorName:         in.AuthorName,
		Status:             string(post.Status),
		IsPremium:          post.IsPremium,
		Price:              post.Price,
		ViewCount:          post.ViewCount,
		ReadingTimeMinutes: ReadingTime(post.Content),
		Tags:               post.TagNames(),
		IsAuthor:           isAuthor,
		PaidByViewer:       paid,
		LikeCount:          in.LikeCount,
		CommentCount:       in.CommentCount,
		LikedByViewer:      in.Liked && in.ViewerID != models.AnonymousViewer,
		BookmarkedByViewer: in.Bookmarked && in.ViewerID != models.AnonymousViewer,
		CreatedAt:          post.CreatedAt,
		UpdatedAt:          post.UpdatedAt,
	}
}

// WordCount counts whitespace separated words
func WordCount(content string) int {
	return len(strings.Fields(content))
}

// ReadingTime returns whole minutes to read content, at least 1
func ReadingTime(content string) int {
	minutes := (WordCount(content) + WordsPerMinute - 1) / WordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}
