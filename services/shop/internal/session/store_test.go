package session

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/gamehub/shop/pkg/logger"
	"github.com/gamehub/shop/services/shop/internal/domain"
)

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, 30*time.Minute), mr
}

func TestCurrentCustomerID_StableWithinSession(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()
	sess := store.Session("s-1")

	first, err := sess.CurrentCustomerID(ctx)
	require.NoError(t, err)
	_, err = uuid.Parse(first)
	require.NoError(t, err)

	second, err := store.Session("s-1").CurrentCustomerID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := store.Session("s-2").CurrentCustomerID(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	assert.Equal(t, first, mr.HGet("session:s-1", KeyCartIdentifier))
	assert.Equal(t, 30*time.Minute, mr.TTL("session:s-1"))
}

func TestCurrentCustomerID_ConcurrentFirstRequestsAgree(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	var (
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	g, gctx := errgroup.WithContext(ctx)
	for range 16 {
		g.Go(func() error {
			id, err := store.Session("s-race").CurrentCustomerID(gctx)
			if err != nil {
				return err
			}
			mu.Lock()
			ids[id] = true
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Len(t, ids, 1)
}

func TestCurrentCustomerID_NewAfterExpiry(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	first, err := store.Session("s-1").CurrentCustomerID(ctx)
	require.NoError(t, err)

	mr.FastForward(31 * time.Minute)

	second, err := store.Session("s-1").CurrentCustomerID(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestSession_SetGetDelete(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	sess := store.Session("s-1")

	require.NoError(t, sess.Set(ctx, "greeting", "hello"))
	require.NoError(t, sess.SetItemCount(ctx, 3))

	v, ok, err := sess.GetString(ctx, "greeting")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", v)

	n, err := sess.GetInt(ctx, KeyItemCount)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, sess.Delete(ctx, "greeting", KeyItemCount))
	_, ok, err = sess.GetString(ctx, "greeting")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err = sess.GetInt(ctx, KeyItemCount)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, sess.Delete(ctx))
}

func TestSession_GetInt_NotAnInteger(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	sess := store.Session("s-1")

	require.NoError(t, sess.Set(ctx, KeyItemCount, "many"))
	_, err := sess.GetInt(ctx, KeyItemCount)
	require.Error(t, err)
}

func TestSession_DraftRoundTrip(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	sess := store.Session("s-1")

	none, err := sess.Draft(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	draft := domain.NewDraftOrder("cust-1", "user-1", domain.ContactFields{FirstName: "Ada"}, 2500, "CAD",
		time.Now().Truncate(time.Second))
	require.NoError(t, sess.SaveDraft(ctx, draft))
	require.NoError(t, sess.SetItemCount(ctx, 3))

	got, err := sess.Draft(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, draft.ID, got.ID)
	assert.Equal(t, int64(2500), got.Total)
	assert.True(t, draft.CreatedAt.Equal(got.CreatedAt))

	require.NoError(t, sess.ClearCheckout(ctx))
	got, err = sess.Draft(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	n, err := sess.GetInt(ctx, KeyItemCount)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSession_CorruptDraft(t *testing.T) {
	store, mr := setupStore(t)
	mr.HSet("session:s-1", KeyDraftOrder, "{not json")

	_, err := store.Session("s-1").Draft(context.Background())
	require.Error(t, err)
}

func TestSession_RedisDown(t *testing.T) {
	store, mr := setupStore(t)
	mr.Close()

	_, err := store.Session("s-1").CurrentCustomerID(context.Background())
	require.Error(t, err)
}

func TestMiddleware_MintsAndReusesSession(t *testing.T) {
	store, mr := setupStore(t)
	cfg := CookieConfig{Name: "gamehub_session", Secure: true}

	var seen []string
	h := Middleware(store, cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := FromContext(r.Context())
		if assert.NotNil(t, sess) {
			seen = append(seen, sess.ID())
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "gamehub_session", c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 1800, c.MaxAge)

	// Existing session: same id, TTL slides back to the full window.
	_, err := store.Session(c.Value).CurrentCustomerID(context.Background())
	require.NoError(t, err)
	mr.FastForward(20 * time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(&http.Cookie{Name: "gamehub_session", Value: c.Value})
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, seen, 2)
	assert.Equal(t, seen[0], seen[1])
	assert.Equal(t, 30*time.Minute, mr.TTL("session:"+c.Value))
}

func TestMiddleware_MalformedCookieGetsNewSession(t *testing.T) {
	store, _ := setupStore(t)

	var got string
	h := Middleware(store, CookieConfig{Name: "gamehub_session"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context()).ID()
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "gamehub_session", Value: "../../etc/passwd"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	_, err := uuid.Parse(got)
	require.NoError(t, err)
}

func TestMiddleware_TagsLoggerWithCustomerID(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	sessionID := uuid.NewString()
	customer, err := store.Session(sessionID).CurrentCustomerID(ctx)
	require.NoError(t, err)

	var buf bytes.Buffer
	base := logger.NewWithWriter("shop", "info", &buf)

	var seen string
	h := Middleware(store, CookieConfig{Name: "gamehub_session"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.CustomerIDFromContext(r.Context())
		logger.FromContext(r.Context()).InfoContext(r.Context(), "cart viewed")
	}))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req = req.WithContext(logger.NewContext(req.Context(), base))
	req.AddCookie(&http.Cookie{Name: "gamehub_session", Value: sessionID})
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, customer, seen)
	assert.Contains(t, buf.String(), `"customer_id":"`+customer+`"`)
}

func TestMiddleware_NewSessionHasNoCustomerID(t *testing.T) {
	store, _ := setupStore(t)

	var seen string
	h := Middleware(store, CookieConfig{Name: "gamehub_session"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.CustomerIDFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/cart", nil))

	assert.Empty(t, seen)
}

func TestFromContext_Missing(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
}
