// Package postapi implements the post_api and tag_api JSON-RPC namespaces.
package postapi

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/quillhq/quillfeed/internal/api/request"
	"github.com/quillhq/quillfeed/internal/feed"
	"github.com/quillhq/quillfeed/internal/gate"
	"github.com/quillhq/quillfeed/internal/models"
	"github.com/quillhq/quillfeed/internal/service"
)

// Service is the post service the API calls into
type Service interface {
	ListFeed(ctx context.Context, req service.FeedRequest, viewerID int64) (feed.Page[gate.Projection], error)
	ListTrending(ctx context.Context, page, size int, viewerID int64) (feed.Page[gate.Projection], error)
	ListFollowing(ctx context.Context, viewerID int64, page, size int) (feed.Page[gate.Projection], error)
	GetPost(ctx context.Context, postID, viewerID int64) (*gate.Projection, error)
	ListRelated(ctx context.Context, postID, viewerID int64) ([]gate.Projection, error)
	ListDrafts(ctx context.Context, authorID int64) ([]gate.Projection, error)
	ListTags(ctx context.Context) ([]models.TagUsage, error)
	CreatePost(ctx context.Context, authorID int64, in service.PostInput) (*gate.Projection, error)
	UpdatePost(ctx context.Context, postID, editorID int64, in service.PostInput) (*gate.Projection, error)
	DeletePost(ctx context.Context, postID, callerID int64) error
}

// PostAPI provides the post_api methods
type PostAPI struct {
	posts Service
}

// NewPostAPI creates a new post API
func NewPostAPI(posts Service) *PostAPI {
	return &PostAPI{posts: posts}
}

type idParams struct {
	ID int64 `json:"id"`
}

type pageParams struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

type updateParams struct {
	ID int64 `json:"id"`
	service.PostInput
}

// ListPosts handles post_api.list_posts
func (p *PostAPI) ListPosts(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var req service.FeedRequest
	if err := request.Decode(params, &req); err != nil {
		return nil, err
	}
	return p.posts.ListFeed(ctx.Request.Context(), req, request.ViewerID(ctx))
}

// ListTrending handles post_api.list_trending
func (p *PostAPI) ListTrending(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var req pageParams
	if err := request.Decode(params, &req); err != nil {
		return nil, err
	}
	return p.posts.ListTrending(ctx.Request.Context(), req.Page, req.Size, request.ViewerID(ctx))
}

// ListFollowing handles post_api.list_following
func (p *PostAPI) ListFollowing(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var req pageParams
	if err := request.Decode(params, &req); err != nil {
		return nil, err
	}
	return p.posts.ListFollowing(ctx.Request.Context(), request.ViewerID(ctx), req.Page, req.Size)
}

// GetPost handles post_api.get_post
func (p *PostAPI) GetPost(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	id, err := decodeID(params)
	if err != nil {
		return nil, err
	}
	return p.posts.GetPost(ctx.Request.Context(), id, request.ViewerID(ctx))
}

// ListRelated handles post_api.list_related
func (p *PostAPI) ListRelated(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	id, err := decodeID(params)
	if err != nil {
		return nil, err
	}
	return p.posts.ListRelated(ctx.Request.Context(), id, request.ViewerID(ctx))
}

// ListDrafts handles post_api.list_drafts
func (p *PostAPI) ListDrafts(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	return p.posts.ListDrafts(ctx.Request.Context(), request.ViewerID(ctx))
}

// CreatePost handles post_api.create_post
func (p *PostAPI) CreatePost(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var in service.PostInput
	if err := request.Decode(params, &in); err != nil {
		return nil, err
	}
	return p.posts.CreatePost(ctx.Request.Context(), request.ViewerID(ctx), in)
}

// UpdatePost handles post_api.update_post
func (p *PostAPI) UpdatePost(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var req updateParams
	if err := request.Decode(params, &req); err != nil {
		return nil, err
	}
	if err := request.RequireID("id", req.ID); err != nil {
		return nil, err
	}
	return p.posts.UpdatePost(ctx.Request.Context(), req.ID, request.ViewerID(ctx), req.PostInput)
}

// DeletePost handles post_api.delete_post
func (p *PostAPI) DeletePost(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	id, err := decodeID(params)
	if err != nil {
		return nil, err
	}
	if err := p.posts.DeletePost(ctx.Request.Context(), id, request.ViewerID(ctx)); err != nil {
		return nil, err
	}
	return gin.H{"deleted": true, "id": id}, nil
}

// ListTags handles tag_api.list_tags
func (p *PostAPI) ListTags(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	return p.posts.ListTags(ctx.Request.Context())
}

func decodeID(params json.RawMessage) (int64, error) {
	var req idParams
	if err := request.Decode(params, &req); err != nil {
		return 0, err
	}
	if err := request.RequireID("id", req.ID); err != nil {
		return 0, err
	}
	return req.ID, nil
}
