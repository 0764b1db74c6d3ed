package store

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/olegiv/goblog/internal/model"
)

// testDB creates a temporary test database with migrations applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "goblog-test-*.db")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	dbPath := f.Name()
	_ = f.Close()

	db, err := NewDB(dbPath)
	if err != nil {
		_ = os.Remove(dbPath)
		t.Fatalf("NewDB: %v", err)
	}

	if err := Migrate(db, "sqlite3"); err != nil {
		_ = db.Close()
		_ = os.Remove(dbPath)
		t.Fatalf("Migrate: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
		_ = os.Remove(dbPath)
	})

	return db
}

func createTestUser(t *testing.T, q *Queries, username string) model.User {
	t.Helper()
	now := time.Now()
	user, err := q.CreateUser(context.Background(), CreateUserParams{
		Username:     username,
		PasswordHash: sql.NullString{String: "hashed-password", Valid: true},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func TestCreateAndGetUser(t *testing.T) {
	db := testDB(t)
	q := New(db)
	ctx := context.Background()

	user := createTestUser(t, q, "alice")
	require.NotZero(t, user.ID)
	require.Equal(t, "alice", user.Username)
	require.True(t, user.HasLocalPassword())

	byName, err := q.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, user.ID, byName.ID)

	_, err = q.GetUserByUsername(ctx, "nobody")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	db := testDB(t)
	q := New(db)

	createTestUser(t, q, "alice")

	now := time.Now()
	_, err := q.CreateUser(context.Background(), CreateUserParams{
		Username:  "alice",
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err == nil {
		t.Fatal("duplicate username should fail the unique constraint")
	}
}

func TestSSOOnlyUser(t *testing.T) {
	db := testDB(t)
	q := New(db)
	ctx := context.Background()

	now := time.Now()
	user, err := q.CreateUser(ctx, CreateUserParams{
		Username:  "sso-only",
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	require.False(t, user.HasLocalPassword())
}

func TestPostRoundTrip(t *testing.T) {
	db := testDB(t)
	q := New(db)
	ctx := context.Background()

	author := createTestUser(t, q, "author")

	now := time.Now()
	post, err := q.CreatePost(ctx, CreatePostParams{
		Title:     "First Post",
		Body:      "Hello, world.",
		ImagePath: sql.NullString{String: "abc123-cat.jpg", Valid: true},
		AuthorID:  author.ID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	require.True(t, post.HasImage())

	// Re-submitting the same fields must produce the same persisted state.
	err = q.UpdatePost(ctx, UpdatePostParams{
		Title:     post.Title,
		Body:      post.Body,
		ImagePath: post.ImagePath,
		AuthorID:  post.AuthorID,
		UpdatedAt: post.UpdatedAt,
		ID:        post.ID,
	})
	require.NoError(t, err)

	again, err := q.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	require.Equal(t, post.Title, again.Title)
	require.Equal(t, post.Body, again.Body)
	require.Equal(t, post.ImagePath, again.ImagePath)
	require.Equal(t, post.AuthorID, again.AuthorID)
}

func TestCreatePost_UnknownAuthorRejected(t *testing.T) {
	db := testDB(t)
	q := New(db)

	now := time.Now()
	_, err := q.CreatePost(context.Background(), CreatePostParams{
		Title:     "Orphan",
		Body:      "No such author.",
		AuthorID:  9999,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err == nil {
		t.Fatal("post with unknown author should fail the foreign key constraint")
	}
}

func TestListPosts_NewestFirst(t *testing.T) {
	db := testDB(t)
	q := New(db)
	ctx := context.Background()

	author := createTestUser(t, q, "author")

	base := time.Now().Add(-time.Hour)
	for i, title := range []string{"oldest", "middle", "newest"} {
		_, err := q.CreatePost(ctx, CreatePostParams{
			Title:     title,
			Body:      "body",
			AuthorID:  author.ID,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	posts, err := q.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	require.Equal(t, "newest", posts[0].Title)
	require.Equal(t, "oldest", posts[2].Title)

	count, err := q.CountPosts(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, count)
}

func TestPostWriteRollsBackInTx(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	q := New(db)

	author := createTestUser(t, q, "author")

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	now := time.Now()
	_, err = q.WithTx(tx).CreatePost(ctx, CreatePostParams{
		Title:     "Doomed",
		Body:      "rolled back",
		AuthorID:  author.ID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	count, err := q.CountPosts(ctx)
	require.NoError(t, err)
	require.Zero(t, count, "rolled-back write must leave the store unchanged")
}

func TestCreateAndListEvents(t *testing.T) {
	db := testDB(t)
	q := New(db)
	ctx := context.Background()

	user := createTestUser(t, q, "alice")

	_, err := q.CreateEvent(ctx, CreateEventParams{
		Level:     model.EventLevelWarning,
		Category:  model.EventCategoryAuth,
		Message:   "Login failed: invalid password",
		UserID:    sql.NullInt64{Int64: user.ID, Valid: true},
		IPAddress: "203.0.113.7",
		Metadata:  `{"username":"alice"}`,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	events, err := q.ListEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, model.EventLevelWarning, events[0].Level)
	require.Equal(t, "203.0.113.7", events[0].IPAddress)
}

func TestSeed(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	createdID, err := Seed(ctx, db, true)
	require.NoError(t, err)
	require.NotZero(t, createdID)

	q := New(db)
	admin, err := q.GetUserByUsername(ctx, DefaultAdminUsername)
	require.NoError(t, err)
	require.Equal(t, createdID, admin.ID)
	require.True(t, admin.HasLocalPassword())

	// Seeding again is a no-op.
	againID, err := Seed(ctx, db, true)
	require.NoError(t, err)
	require.Zero(t, againID)

	// Disabled seeding creates nothing.
	db2 := testDB(t)
	disabledID, err := Seed(ctx, db2, false)
	require.NoError(t, err)
	require.Zero(t, disabledID)
	_, err = New(db2).GetUserByUsername(ctx, DefaultAdminUsername)
	require.ErrorIs(t, err, sql.ErrNoRows)
}
