// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"

	"github.com/quillhq/quillfeed/internal/db"
	"github.com/quillhq/quillfeed/internal/models"
)

// New returns a migrated in-memory database closed at test cleanup. The
// pool holds a single connection so every query sees the same database.
func New(t testing.TB) *db.DB {
	t.Helper()

	database, err := db.Open(sqlite.Open(":memory:"), "ERROR")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := database.DB.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = database.Close() })

	if err := database.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

// Fixture inserts rows for tests
type Fixture struct {
	t  testing.TB
	db *db.DB
	// Base is the creation time of the first post; later posts are one
	// minute apart unless a time is given.
	Base  time.Time
	posts int
}

// NewFixture creates a fixture writer over database
func NewFixture(t testing.TB, database *db.DB) *Fixture {
	return &Fixture{t: t, db: database, Base: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *Fixture) create(v interface{}) {
	f.t.Helper()
	if err := f.db.DB.Create(v).Error; err != nil {
		f.t.Fatalf("failed to insert %T: %v", v, err)
	}
}

// Account inserts an account
func (f *Fixture) Account(name string, role models.Role) *models.Account {
	f.t.Helper()
	a := &models.Account{Name: name, Email: name + "@example.com", Role: role}
	f.create(a)
	return a
}

// Post inserts a published post by author tagged with tagNames
func (f *Fixture) Post(authorID int64, title string, tagNames ...string) *models.Post {
	f.t.Helper()
	return f.PostWith(&models.Post{AuthorID: authorID, Title: title, Content: "body of " + title}, tagNames...)
}

// PostWith inserts p, filling status and creation time when unset
func (f *Fixture) PostWith(p *models.Post, tagNames ...string) *models.Post {
	f.t.Helper()
	if p.Status == "" {
		p.Status = models.PostStatusPublished
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = f.Base.Add(time.Duration(f.posts) * time.Minute)
		p.UpdatedAt = p.CreatedAt
	}
	f.posts++
	for _, name := range tagNames {
		tag := models.Tag{Name: name}
		if err := f.db.DB.Where(models.Tag{Name: name}).FirstOrCreate(&tag).Error; err != nil {
			f.t.Fatalf("failed to insert tag %q: %v", name, err)
		}
		p.Tags = append(p.Tags, tag)
	}
	f.create(p)
	return p
}

// Like inserts a like
func (f *Fixture) Like(postID, userID int64) {
	f.t.Helper()
	f.create(&models.Like{PostID: postID, UserID: userID})
}

// Bookmark inserts a bookmark
func (f *Fixture) Bookmark(postID, userID int64) {
	f.t.Helper()
	f.create(&models.Bookmark{PostID: postID, UserID: userID})
}

// Comment inserts a comment, or a reply when parentID is non-nil
func (f *Fixture) Comment(postID, authorID int64, parentID *int64) *models.Comment {
	f.t.Helper()
	c := &models.Comment{PostID: postID, AuthorID: authorID, ParentID: parentID, Content: "comment"}
	f.create(c)
	return c
}

// Follow inserts a follow edge
func (f *Fixture) Follow(followerID, followingID int64) {
	f.t.Helper()
	f.create(&models.Follow{FollowerID: followerID, FollowingID: followingID})
}

// Payment inserts a payment
func (f *Fixture) Payment(p *models.Payment) *models.Payment {
	f.t.Helper()
	if p.Currency == "" {
		p.Currency = "INR"
	}
	f.create(p)
	return p
}
