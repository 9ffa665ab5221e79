package properties

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galactavista/galactavista-go/client"
	"github.com/galactavista/galactavista-go/internal/apitest"
	"github.com/galactavista/galactavista-go/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAccessor(t *testing.T, server *apitest.Server) (*Accessor, *client.Client) {
	t.Helper()
	c := client.New(client.WithBaseURL(server.BaseURL()))
	return NewAccessor(c, testLogger()), c
}

func seedListings(t *testing.T, server *apitest.Server, titles ...string) []types.Property {
	t.Helper()
	agent := server.SeedUser(t, "agent@example.com", "secret123", types.RoleAgent)
	seeded := make([]types.Property, 0, len(titles))
	for _, title := range titles {
		seeded = append(seeded, server.SeedProperty(t, types.Property{
			Title:        title,
			Price:        400000,
			City:         "Springfield",
			PropertyType: types.PropertyTypeHouse,
			Agent:        agent,
		}))
	}
	return seeded
}

func TestFetchReplacesItemsAndPagination(t *testing.T) {
	server := apitest.New(t)
	seedListings(t, server, "Lake House", "Lake Cabin", "City Condo")

	a, _ := newAccessor(t, server)
	require.NoError(t, a.Fetch(context.Background(), nil))

	snap := a.Snapshot()
	assert.Len(t, snap.Items, 3)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Error)
	require.NotNil(t, snap.Pagination)
	assert.Equal(t, 1, snap.Pagination.Page)
	assert.EqualValues(t, 3, snap.Pagination.Total)
	assert.Equal(t, 1, snap.Pagination.TotalPages)
}

func TestFetchWithFilter(t *testing.T) {
	server := apitest.New(t)
	seedListings(t, server, "Lake House", "Lake Cabin", "City Condo")

	a, _ := newAccessor(t, server)
	query := "lake"
	require.NoError(t, a.Fetch(context.Background(), &types.PropertySearchRequest{Query: &query}))

	snap := a.Snapshot()
	assert.Len(t, snap.Items, 2)
}

func TestFetchFailureKeepsItems(t *testing.T) {
	server := apitest.New(t)
	seedListings(t, server, "Lake House")

	a, _ := newAccessor(t, server)
	require.NoError(t, a.Fetch(context.Background(), nil))
	require.Len(t, a.Snapshot().Items, 1)

	// Point the accessor's client at a dead server; the fetch fails with a
	// network error and the previous items survive.
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	a.client = client.New(client.WithBaseURL(dead.URL))

	err := a.Fetch(context.Background(), nil)
	require.Error(t, err)

	snap := a.Snapshot()
	assert.False(t, snap.Loading)
	assert.NotEmpty(t, snap.Error)
	assert.Len(t, snap.Items, 1, "failed fetch must not touch prior items")
}

func TestFetchOne(t *testing.T) {
	server := apitest.New(t)
	seeded := seedListings(t, server, "Lake House", "City Condo")

	a, _ := newAccessor(t, server)
	property, err := a.FetchOne(context.Background(), seeded[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "City Condo", property.Title)

	snap := a.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, seeded[1].ID, snap.Items[0].ID)
}

func TestFetchOneServesFromCache(t *testing.T) {
	server := apitest.New(t)
	seeded := seedListings(t, server, "Lake House")
	path := "/api/v1/properties/1"

	a, _ := newAccessor(t, server)
	_, err := a.FetchOne(context.Background(), seeded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, server.RequestCount(path))

	_, err = a.FetchOne(context.Background(), seeded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, server.RequestCount(path), "second lookup must hit the cache")
}

func TestFetchOneFailureSetsErrorAndPropagates(t *testing.T) {
	server := apitest.New(t)
	a, _ := newAccessor(t, server)

	_, err := a.FetchOne(context.Background(), 999)
	var httpErr *client.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
	assert.NotEmpty(t, a.Snapshot().Error)
}

func TestCreatePrepends(t *testing.T) {
	server := apitest.New(t)
	seedListings(t, server, "Old Listing")
	agent := server.SeedUser(t, "creator@example.com", "secret123", types.RoleAgent)

	a, c := newAccessor(t, server)
	c.SetToken(server.Token(t, agent))
	require.NoError(t, a.Fetch(context.Background(), nil))

	created, err := a.Create(context.Background(), types.PropertyCreateRequest{
		Title:        "Brand New",
		Price:        650000,
		Address:      "1 Main St",
		City:         "Springfield",
		State:        "IL",
		ZipCode:      "62704",
		PropertyType: types.PropertyTypeHouse,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID, "server assigns the id")

	snap := a.Snapshot()
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "Brand New", snap.Items[0].Title, "new listing is prepended")
}

func TestCreateThenFetchOneRoundTrip(t *testing.T) {
	server := apitest.New(t)
	agent := server.SeedUser(t, "creator@example.com", "secret123", types.RoleAgent)

	a, c := newAccessor(t, server)
	c.SetToken(server.Token(t, agent))

	description := "Waterfront"
	bedrooms := 4
	created, err := a.Create(context.Background(), types.PropertyCreateRequest{
		Title:        "Lake House",
		Description:  &description,
		Price:        500000,
		Address:      "2 Shore Rd",
		City:         "Springfield",
		State:        "IL",
		ZipCode:      "62704",
		PropertyType: types.PropertyTypeHouse,
		Bedrooms:     &bedrooms,
	})
	require.NoError(t, err)

	fetched, err := a.FetchOne(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, fetched)
}

func TestUpdateReplacesMatchingItem(t *testing.T) {
	server := apitest.New(t)
	seeded := seedListings(t, server, "Lake House", "City Condo")
	agent := server.SeedUser(t, "editor@example.com", "secret123", types.RoleAgent)

	a, c := newAccessor(t, server)
	c.SetToken(server.Token(t, agent))
	require.NoError(t, a.Fetch(context.Background(), nil))

	title := "Lake House Deluxe"
	updated, err := a.Update(context.Background(), seeded[0].ID, types.PropertyUpdateRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Lake House Deluxe", updated.Title)

	snap := a.Snapshot()
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "Lake House Deluxe", snap.Items[0].Title)
	assert.Equal(t, "City Condo", snap.Items[1].Title)
}

func TestUpdateNotInViewIsSilentlyDiscarded(t *testing.T) {
	server := apitest.New(t)
	seeded := seedListings(t, server, "Lake House", "City Condo")
	agent := server.SeedUser(t, "editor@example.com", "secret123", types.RoleAgent)

	a, c := newAccessor(t, server)
	c.SetToken(server.Token(t, agent))
	// View holds only the first listing.
	_, err := a.FetchOne(context.Background(), seeded[0].ID)
	require.NoError(t, err)

	title := "Renamed Elsewhere"
	_, err = a.Update(context.Background(), seeded[1].ID, types.PropertyUpdateRequest{Title: &title})
	require.NoError(t, err, "the call still succeeds for the caller")

	snap := a.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "Lake House", snap.Items[0].Title, "local view unchanged")
}

func TestDeleteRemovesAfterConfirmation(t *testing.T) {
	server := apitest.New(t)
	seeded := seedListings(t, server, "Lake House", "City Condo")
	agent := server.SeedUser(t, "editor@example.com", "secret123", types.RoleAgent)

	a, c := newAccessor(t, server)
	c.SetToken(server.Token(t, agent))
	require.NoError(t, a.Fetch(context.Background(), nil))

	require.NoError(t, a.Delete(context.Background(), seeded[0].ID))
	snap := a.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, seeded[1].ID, snap.Items[0].ID)
}

func TestDeleteAbsentIDIsLocalNoop(t *testing.T) {
	server := apitest.New(t)
	seedListings(t, server, "Lake House")
	agent := server.SeedUser(t, "editor@example.com", "secret123", types.RoleAgent)

	a, c := newAccessor(t, server)
	c.SetToken(server.Token(t, agent))
	require.NoError(t, a.Fetch(context.Background(), nil))

	require.NoError(t, a.Delete(context.Background(), 999))
	assert.Len(t, a.Snapshot().Items, 1, "deleting an absent id leaves items unchanged")
}

func TestFetchByAgentReturnsRawPage(t *testing.T) {
	server := apitest.New(t)
	agent := server.SeedUser(t, "agent@example.com", "secret123", types.RoleAgent)
	other := server.SeedUser(t, "other@example.com", "secret123", types.RoleAgent)
	server.SeedProperty(t, types.Property{Title: "Mine", Price: 100000, Agent: agent})
	server.SeedProperty(t, types.Property{Title: "Theirs", Price: 100000, Agent: other})

	a, c := newAccessor(t, server)
	c.SetToken(server.Token(t, agent))

	page, err := a.FetchByAgent(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Mine", page.Data[0].Title)

	snap := a.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "Mine", snap.Items[0].Title)
}

func TestClearError(t *testing.T) {
	server := apitest.New(t)
	a, _ := newAccessor(t, server)

	_, err := a.FetchOne(context.Background(), 999)
	require.Error(t, err)
	require.NotEmpty(t, a.Snapshot().Error)

	a.ClearError()
	assert.Empty(t, a.Snapshot().Error)
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	// Two overlapping fetches: the first to start resolves last. Its
	// response must be discarded in favor of the newer one.
	release := make(chan struct{})
	arrived := make(chan struct{})
	var once sync.Once

	mux := http.NewServeMux()
	mux.HandleFunc("/properties", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") == "slow" {
			once.Do(func() { close(arrived) })
			<-release
			w.Write([]byte(`{"success":true,"data":{"page":1,"page_size":10,"total":1,"total_pages":1,"data":[{"id":1,"title":"slow"}]}}`))
			return
		}
		w.Write([]byte(`{"success":true,"data":{"page":1,"page_size":10,"total":1,"total_pages":1,"data":[{"id":2,"title":"fast"}]}}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	a := NewAccessor(client.New(client.WithBaseURL(server.URL)), testLogger())

	slow := "slow"
	done := make(chan error, 1)
	go func() {
		done <- a.Fetch(context.Background(), &types.PropertySearchRequest{Query: &slow})
	}()
	<-arrived // the slow fetch is in flight and holds the older sequence number

	fast := "fast"
	require.NoError(t, a.Fetch(context.Background(), &types.PropertySearchRequest{Query: &fast}))
	close(release)
	require.NoError(t, <-done)

	snap := a.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "fast", snap.Items[0].Title, "stale response must not overwrite the newer one")
	assert.False(t, snap.Loading)
}
