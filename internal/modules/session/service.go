package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

var shopDomainPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*\.myshopify\.com$`)

// Config carries the app credentials issued by the Shopify Partner dashboard.
type Config struct {
	APIKey    string
	APISecret string
	Scopes    string
	AppURL    string
}

// TokenExchanger trades an OAuth authorization code for an offline access token.
type TokenExchanger interface {
	ExchangeCode(ctx context.Context, shop, apiKey, apiSecret, code string) (accessToken, scope string, err error)
}

// Service defines session and tenant-auth business logic.
type Service interface {
	// BeginAuth returns the Shopify grant-screen URL for an install request.
	BeginAuth(shop string) (string, error)
	// CompleteAuth verifies the OAuth callback, exchanges the code and stores
	// the session.
	CompleteAuth(ctx context.Context, query url.Values) (*Session, error)
	// VerifySessionToken validates an App Bridge session token and returns
	// the shop domain it was issued for.
	VerifySessionToken(token string) (string, error)
	// SessionForShop returns (nil, nil) when the shop is not installed.
	SessionForShop(ctx context.Context, shop string) (*Session, error)
	// VerifyWebhookHMAC checks the X-Shopify-Hmac-Sha256 signature of a
	// webhook body.
	VerifyWebhookHMAC(body []byte, signature string) bool
	// HandleUninstalled removes the shop's session after an app/uninstalled
	// webhook. Price records are kept.
	HandleUninstalled(ctx context.Context, shop string) error
}

type service struct {
	cfg       Config
	repo      Repository
	exchanger TokenExchanger

	mu     sync.Mutex
	nonces map[string]string // state -> shop
}

// NewService creates a new session service.
func NewService(cfg Config, repo Repository, exchanger TokenExchanger) Service {
	if cfg.Scopes == "" {
		cfg.Scopes = "read_products,write_products"
	}
	return &service{
		cfg:       cfg,
		repo:      repo,
		exchanger: exchanger,
		nonces:    make(map[string]string),
	}
}

func (s *service) BeginAuth(shop string) (string, error) {
	if !shopDomainPattern.MatchString(shop) {
		return "", errors.New("invalid shop domain")
	}
	state := uuid.NewString()
	s.mu.Lock()
	s.nonces[state] = shop
	s.mu.Unlock()

	q := url.Values{}
	q.Set("client_id", s.cfg.APIKey)
	q.Set("scope", s.cfg.Scopes)
	q.Set("redirect_uri", s.cfg.AppURL+"/api/auth/callback")
	q.Set("state", state)
	return fmt.Sprintf("https://%s/admin/oauth/authorize?%s", shop, q.Encode()), nil
}

func (s *service) CompleteAuth(ctx context.Context, query url.Values) (*Session, error) {
	shop := query.Get("shop")
	if !shopDomainPattern.MatchString(shop) {
		return nil, errors.New("invalid shop domain")
	}
	if !verifyQueryHMAC(query, s.cfg.APISecret) {
		return nil, errors.New("invalid hmac signature")
	}

	state := query.Get("state")
	s.mu.Lock()
	expectedShop, ok := s.nonces[state]
	delete(s.nonces, state)
	s.mu.Unlock()
	if !ok || expectedShop != shop {
		return nil, errors.New("invalid or expired state")
	}

	token, scope, err := s.exchanger.ExchangeCode(ctx, shop, s.cfg.APIKey, s.cfg.APISecret, query.Get("code"))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	sess := &Session{
		ID:          uuid.New(),
		Shop:        shop,
		AccessToken: token,
		Scope:       scope,
	}
	if err := s.repo.Upsert(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *service) VerifySessionToken(tokenString string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.APISecret), nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid session token")
	}
	if !claims.VerifyAudience(s.cfg.APIKey, true) {
		return "", errors.New("session token audience mismatch")
	}
	dest, _ := claims["dest"].(string)
	shop := strings.TrimPrefix(dest, "https://")
	if !shopDomainPattern.MatchString(shop) {
		return "", errors.New("session token has no valid shop destination")
	}
	return shop, nil
}

func (s *service) SessionForShop(ctx context.Context, shop string) (*Session, error) {
	return s.repo.GetByShop(ctx, shop)
}

func (s *service) VerifyWebhookHMAC(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(s.cfg.APISecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *service) HandleUninstalled(ctx context.Context, shop string) error {
	return s.repo.DeleteByShop(ctx, shop)
}

// verifyQueryHMAC checks the hmac parameter of an OAuth redirect: HMAC-SHA256
// over the remaining parameters sorted and joined as key=value&..., hex encoded.
func verifyQueryHMAC(query url.Values, secret string) bool {
	signature := query.Get("hmac")
	if signature == "" {
		return false
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		if k == "hmac" || k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+query.Get(k))
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
