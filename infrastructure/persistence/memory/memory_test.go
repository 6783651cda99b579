package memory

import (
	"context"
	"testing"
	"time"

	"bottomtime/domain/divelog"
	"bottomtime/domain/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour int) *time.Time {
	t := time.Date(2024, 6, 1, hour, 0, 0, 0, time.UTC)
	return &t
}

func TestDiveLogRepository_CreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewDiveLogRepository()
	notes := "first"

	created, err := repo.Create(ctx, &divelog.Entry{OwnerID: "owner", EntryTime: at(9), Notes: &notes})
	require.NoError(t, err)
	assert.NotEmpty(t, created.LogID)
	assert.NotNil(t, created.CreatedAt)
	assert.Nil(t, created.UpdatedAt)

	// Mutating a returned entry must not reach the stored copy.
	*created.Notes = "changed"
	got, err := repo.Get(ctx, created.LogID)
	require.NoError(t, err)
	assert.Equal(t, "first", *got.Notes)

	site := "Blue Hole"
	updated, err := repo.Update(ctx, &divelog.Entry{LogID: created.LogID, Site: &site})
	require.NoError(t, err)
	assert.Equal(t, "Blue Hole", *updated.Site)
	assert.Equal(t, "first", *updated.Notes)
	assert.NotNil(t, updated.UpdatedAt)

	missing, err := repo.Update(ctx, &divelog.Entry{LogID: "nope", Site: &site})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDiveLogRepository_Query(t *testing.T) {
	ctx := context.Background()
	repo := NewDiveLogRepository()
	for _, h := range []int{8, 10, 12, 14} {
		_, err := repo.Create(ctx, &divelog.Entry{OwnerID: "owner", EntryTime: at(h)})
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, &divelog.Entry{OwnerID: "someone-else", EntryTime: at(11)})
	require.NoError(t, err)

	asc, err := repo.Query(ctx, "owner", divelog.ListOptions{Order: divelog.OrderAsc, After: at(10)})
	require.NoError(t, err)
	require.Len(t, asc, 2)
	assert.Equal(t, 12, asc[0].EntryTime.Hour())
	assert.Equal(t, 14, asc[1].EntryTime.Hour())

	desc, err := repo.Query(ctx, "owner", divelog.ListOptions{Before: at(12), Limit: 1})
	require.NoError(t, err)
	require.Len(t, desc, 1)
	assert.Equal(t, 10, desc[0].EntryTime.Hour())

	require.NoError(t, repo.Destroy(ctx, desc[0].LogID))
	require.NoError(t, repo.Destroy(ctx, desc[0].LogID))
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()
	u := &user.User{UserName: "ama", Role: user.RoleUser}
	u.SetEmail("Ama@Sea.jp")

	created, err := repo.Create(ctx, u)
	require.NoError(t, err)
	assert.NotEmpty(t, created.UserID)

	byEmail, err := repo.GetByEmail(ctx, "AMA@sea.jp")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, created.UserID, byEmail.UserID)

	none, err := repo.GetByUserName(ctx, "Ama")
	require.NoError(t, err)
	assert.Nil(t, none)

	created.DisplayName = "Ama"
	require.NoError(t, repo.Save(ctx, created))
	saved, _ := repo.GetByID(ctx, created.UserID)
	assert.Equal(t, "Ama", saved.DisplayName)
	assert.NotNil(t, saved.UpdatedAt)

	assert.Error(t, repo.Save(ctx, &user.User{UserID: "ghost"}))
}

func TestOAuthRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewOAuthRepository()

	require.NoError(t, repo.Create(ctx, &user.OAuthLink{Provider: "github", ProviderID: "1", UserID: "u1"}))
	require.NoError(t, repo.Create(ctx, &user.OAuthLink{Provider: "google", ProviderID: "9", UserID: "u1"}))
	assert.Error(t, repo.Create(ctx, &user.OAuthLink{Provider: "github", ProviderID: "1", UserID: "u2"}))

	links, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "github", links[0].Provider)

	require.NoError(t, repo.Delete(ctx, "github", "1"))
	link, err := repo.Get(ctx, "github", "1")
	require.NoError(t, err)
	assert.Nil(t, link)
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(0)
	defer store.Close()

	now := time.Now()
	require.NoError(t, store.Create(ctx, &user.Session{SessionID: "live", UserID: "u", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, store.Create(ctx, &user.Session{SessionID: "stale", UserID: "u", ExpiresAt: now.Add(-time.Minute)}))

	live, err := store.Get(ctx, "live")
	require.NoError(t, err)
	assert.NotNil(t, live)

	stale, err := store.Get(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, stale)

	store.cleanup()
	assert.Len(t, store.sessions, 1)

	require.NoError(t, store.Delete(ctx, "live"))
	gone, _ := store.Get(ctx, "live")
	assert.Nil(t, gone)
}
