package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey    = "test-api-key"
	testAPISecret = "test-api-secret"
	testShop      = "example.myshopify.com"
)

type memRepo struct {
	sessions map[string]*Session
}

func newMemRepo() *memRepo { return &memRepo{sessions: map[string]*Session{}} }

func (r *memRepo) GetByShop(ctx context.Context, shop string) (*Session, error) {
	return r.sessions[shop], nil
}

func (r *memRepo) Upsert(ctx context.Context, s *Session) error {
	r.sessions[s.Shop] = s
	return nil
}

func (r *memRepo) DeleteByShop(ctx context.Context, shop string) error {
	delete(r.sessions, shop)
	return nil
}

type fakeExchanger struct {
	token string
	err   error
}

func (f *fakeExchanger) ExchangeCode(ctx context.Context, shop, apiKey, apiSecret, code string) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	return f.token, "read_products,write_products", nil
}

func newTestService(repo Repository, exchanger TokenExchanger) Service {
	return NewService(Config{
		APIKey:    testAPIKey,
		APISecret: testAPISecret,
		AppURL:    "https://app.example.com",
	}, repo, exchanger)
}

func signSessionToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func sessionClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"dest": "https://" + testShop,
		"aud":  testAPIKey,
		"exp":  time.Now().Add(time.Minute).Unix(),
	}
}

func TestVerifySessionToken(t *testing.T) {
	svc := newTestService(newMemRepo(), &fakeExchanger{})

	t.Run("valid token resolves the shop", func(t *testing.T) {
		shop, err := svc.VerifySessionToken(signSessionToken(t, testAPISecret, sessionClaims()))
		require.NoError(t, err)
		assert.Equal(t, testShop, shop)
	})

	t.Run("wrong signing secret is rejected", func(t *testing.T) {
		_, err := svc.VerifySessionToken(signSessionToken(t, "other-secret", sessionClaims()))
		assert.Error(t, err)
	})

	t.Run("audience mismatch is rejected", func(t *testing.T) {
		claims := sessionClaims()
		claims["aud"] = "another-app"
		_, err := svc.VerifySessionToken(signSessionToken(t, testAPISecret, claims))
		assert.Error(t, err)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		claims := sessionClaims()
		claims["exp"] = time.Now().Add(-time.Minute).Unix()
		_, err := svc.VerifySessionToken(signSessionToken(t, testAPISecret, claims))
		assert.Error(t, err)
	})

	t.Run("garbage destination is rejected", func(t *testing.T) {
		claims := sessionClaims()
		claims["dest"] = "https://not-a-shop.example.com"
		_, err := svc.VerifySessionToken(signSessionToken(t, testAPISecret, claims))
		assert.Error(t, err)
	})
}

func TestBeginAuth(t *testing.T) {
	svc := newTestService(newMemRepo(), &fakeExchanger{})

	t.Run("rejects non-myshopify domains", func(t *testing.T) {
		_, err := svc.BeginAuth("evil.example.com")
		assert.Error(t, err)
	})

	t.Run("builds the grant URL", func(t *testing.T) {
		authURL, err := svc.BeginAuth(testShop)
		require.NoError(t, err)

		u, err := url.Parse(authURL)
		require.NoError(t, err)
		assert.Equal(t, testShop, u.Host)
		assert.Equal(t, "/admin/oauth/authorize", u.Path)
		q := u.Query()
		assert.Equal(t, testAPIKey, q.Get("client_id"))
		assert.Equal(t, "read_products,write_products", q.Get("scope"))
		assert.Equal(t, "https://app.example.com/api/auth/callback", q.Get("redirect_uri"))
		assert.NotEmpty(t, q.Get("state"))
	})
}

// signQuery computes the hmac parameter the way Shopify signs OAuth redirects.
func signQuery(q url.Values, secret string) {
	keys := make([]string, 0, len(q))
	for k := range q {
		if k == "hmac" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+q.Get(k))
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	q.Set("hmac", hex.EncodeToString(mac.Sum(nil)))
}

func callbackQuery(t *testing.T, svc Service) url.Values {
	t.Helper()
	authURL, err := svc.BeginAuth(testShop)
	require.NoError(t, err)
	u, err := url.Parse(authURL)
	require.NoError(t, err)

	q := url.Values{}
	q.Set("shop", testShop)
	q.Set("code", "auth-code")
	q.Set("state", u.Query().Get("state"))
	q.Set("timestamp", "1700000000")
	signQuery(q, testAPISecret)
	return q
}

func TestCompleteAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the exchanged token", func(t *testing.T) {
		repo := newMemRepo()
		svc := newTestService(repo, &fakeExchanger{token: "offline-token"})

		sess, err := svc.CompleteAuth(ctx, callbackQuery(t, svc))
		require.NoError(t, err)
		assert.Equal(t, testShop, sess.Shop)
		assert.Equal(t, "offline-token", sess.AccessToken)

		stored := repo.sessions[testShop]
		require.NotNil(t, stored)
		assert.Equal(t, "offline-token", stored.AccessToken)
	})

	t.Run("rejects a tampered hmac", func(t *testing.T) {
		svc := newTestService(newMemRepo(), &fakeExchanger{token: "offline-token"})
		q := callbackQuery(t, svc)
		q.Set("code", "tampered")
		_, err := svc.CompleteAuth(ctx, q)
		assert.Error(t, err)
	})

	t.Run("rejects a replayed state", func(t *testing.T) {
		svc := newTestService(newMemRepo(), &fakeExchanger{token: "offline-token"})
		q := callbackQuery(t, svc)
		_, err := svc.CompleteAuth(ctx, q)
		require.NoError(t, err)
		_, err = svc.CompleteAuth(ctx, q)
		assert.Error(t, err)
	})

	t.Run("rejects an unknown state", func(t *testing.T) {
		svc := newTestService(newMemRepo(), &fakeExchanger{token: "offline-token"})
		q := callbackQuery(t, svc)
		q.Set("state", "forged")
		signQuery(q, testAPISecret)
		_, err := svc.CompleteAuth(ctx, q)
		assert.Error(t, err)
	})
}

func TestVerifyWebhookHMAC(t *testing.T) {
	svc := newTestService(newMemRepo(), &fakeExchanger{})
	body := []byte(`{"domain":"example.myshopify.com"}`)

	mac := hmac.New(sha256.New, []byte(testAPISecret))
	mac.Write(body)
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.True(t, svc.VerifyWebhookHMAC(body, signature))
	assert.False(t, svc.VerifyWebhookHMAC(body, "bogus"))
	assert.False(t, svc.VerifyWebhookHMAC([]byte("other"), signature))
}

func TestHandleUninstalled(t *testing.T) {
	repo := newMemRepo()
	repo.sessions[testShop] = &Session{Shop: testShop, AccessToken: "tok"}
	svc := newTestService(repo, &fakeExchanger{})

	require.NoError(t, svc.HandleUninstalled(context.Background(), testShop))
	assert.Nil(t, repo.sessions[testShop])

	sess, err := svc.SessionForShop(context.Background(), testShop)
	require.NoError(t, err)
	assert.Nil(t, sess)
}
