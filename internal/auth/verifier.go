package auth

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/golang-jwt/jwt/v5"
)

// Issuers accepted on ID tokens.
var Issuers = []string{"accounts.google.com", "https://accounts.google.com"}

// Config configures a Verifier.
type Config struct {
	Required        bool
	ClientIDs       []string
	Algorithms      []string
	ClockSkew       time.Duration
	MaxCachedTokens int
}

// Verifier checks bearer ID tokens and caches successful verifications.
type Verifier struct {
	keys       *KeyCache
	required   bool
	clientIDs  []string
	algorithms []string
	parser     *jwt.Parser
	tokens     *tokenCache
	now        func() time.Time
}

type idClaims struct {
	jwt.RegisteredClaims
	AuthorizedParty string `json:"azp,omitempty"`
}

// New builds a Verifier over keys.
func New(keys *KeyCache, cfg Config) *Verifier {
	algs := make([]string, 0, len(cfg.Algorithms))
	for _, a := range cfg.Algorithms {
		if a = strings.ToUpper(strings.TrimSpace(a)); a != "" {
			algs = append(algs, a)
		}
	}
	if len(algs) == 0 {
		algs = []string{"RS256"}
	}
	var ids []string
	for _, id := range cfg.ClientIDs {
		if id = strings.TrimSpace(id); id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	v := &Verifier{
		keys:       keys,
		required:   cfg.Required,
		clientIDs:  ids,
		algorithms: algs,
		tokens:     newTokenCache(cfg.MaxCachedTokens),
		now:        time.Now,
	}
	v.parser = jwt.NewParser(
		jwt.WithValidMethods(algs),
		jwt.WithLeeway(cfg.ClockSkew),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return v.now() }),
	)
	return v
}

// Required reports whether requests must carry a verified token.
func (v *Verifier) Required() bool { return v.required }

func authErr(msg string, err error) error {
	engine.IncrAuthFailure()
	return engine.Errorf(engine.KindAuth, msg, err)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(authorization string) (string, error) {
	if strings.TrimSpace(authorization) == "" {
		return "", authErr("authorization is required", nil)
	}
	scheme, token, _ := strings.Cut(authorization, " ")
	token = strings.TrimSpace(token)
	if !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", authErr("invalid authorization", nil)
	}
	return token, nil
}

// Verify checks the bearer token in authorization and returns its subject.
func (v *Verifier) Verify(ctx context.Context, authorization string) (string, error) {
	token, err := BearerToken(authorization)
	if err != nil {
		return "", err
	}
	if sub, ok := v.tokens.get(token, v.now()); ok {
		return sub, nil
	}

	key, err := v.signingKey(ctx, token)
	if err != nil {
		return "", err
	}

	var claims idClaims
	_, err = v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) { return key, nil })
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "", authErr("token expired", err)
	}
	if err != nil {
		return "", authErr(engine.MsgInvalidToken, err)
	}

	subject, err := v.checkClaims(&claims)
	if err != nil {
		return "", err
	}
	v.tokens.put(token, subject, claims.ExpiresAt.Time)
	return subject, nil
}

func (v *Verifier) signingKey(ctx context.Context, token string) (any, error) {
	unverified, _, err := v.parser.ParseUnverified(token, &idClaims{})
	if err != nil {
		return nil, authErr(engine.MsgInvalidToken, err)
	}
	alg, _ := unverified.Header["alg"].(string)
	if !slices.Contains(v.algorithms, strings.ToUpper(alg)) {
		return nil, authErr("invalid token algorithm", nil)
	}
	kid, _ := unverified.Header["kid"].(string)
	if strings.TrimSpace(kid) == "" {
		return nil, authErr(engine.MsgInvalidToken, nil)
	}
	key, err := v.keys.Key(ctx, kid)
	if err != nil {
		slog.Warn("auth: signing key unavailable", slog.String("kid", kid), slog.Any("error", err))
		return nil, authErr(engine.MsgInvalidToken, err)
	}
	return key, nil
}

func (v *Verifier) checkClaims(c *idClaims) (string, error) {
	if c.Issuer == "" || c.Subject == "" || len(c.Audience) == 0 {
		return "", authErr(engine.MsgInvalidToken, nil)
	}
	if !slices.Contains(Issuers, c.Issuer) {
		return "", authErr("token issuer mismatch", nil)
	}
	for _, aud := range c.Audience {
		if aud == "" {
			return "", authErr("token audience invalid", nil)
		}
	}
	if len(v.clientIDs) > 0 && !slices.ContainsFunc(c.Audience, func(a string) bool {
		return slices.Contains(v.clientIDs, a)
	}) {
		return "", authErr("token audience mismatch", nil)
	}
	if len(c.Audience) > 1 {
		if c.AuthorizedParty == "" {
			return "", authErr("token azp missing", nil)
		}
		if !slices.Contains(c.Audience, c.AuthorizedParty) {
			return "", authErr("token azp mismatch", nil)
		}
	}
	if c.AuthorizedParty != "" && len(v.clientIDs) > 0 && !slices.Contains(v.clientIDs, c.AuthorizedParty) {
		return "", authErr("token azp mismatch", nil)
	}
	if !engine.ValidUserID(c.Subject) {
		return "", authErr("invalid token subject", nil)
	}
	return c.Subject, nil
}

// Authorize validates userID and, when tokens are required, checks that the
// bearer token belongs to that user.
func (v *Verifier) Authorize(ctx context.Context, userID, authorization string) (string, error) {
	id, err := engine.SanitizeUserID(userID)
	if err != nil {
		return "", err
	}
	if !v.required {
		return id, nil
	}
	subject, err := v.Verify(ctx, authorization)
	if err != nil {
		return "", err
	}
	if subject != id {
		return "", engine.Errorf(engine.KindForbidden, "user mismatch", nil)
	}
	return id, nil
}
