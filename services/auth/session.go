package authsvc

import (
	"errors"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/trezcool/darasa/core"
)

var (
	errInvalidToken = errors.New("invalid or expired session token")
)

// Claims represents the identity claims transmitted via a session JWT.
type Claims struct {
	jwt.StandardClaims
	Name string `json:"name,omitempty"`
}

// Authenticator resolves the opaque session token handed to the app into
// the current Identity. The data layer never inspects the token itself;
// it only consumes the resulting core.Session.
type Authenticator struct {
	appName string
	secret  []byte
	ttl     time.Duration

	mu      sync.RWMutex
	session core.Session
}

func NewAuthenticator(conf *core.Config) *Authenticator {
	return &Authenticator{
		appName: conf.AppName,
		secret:  []byte(conf.SessionSecret),
		ttl:     conf.SessionTTL,
		session: core.Session{Loading: true},
	}
}

// GenerateToken generates a signed JWT token string representing the identity.
func (a *Authenticator) GenerateToken(id core.Identity) (string, error) {
	now := time.Now()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.appName,
			Subject:   id.UID,
			ExpiresAt: now.Add(a.ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name: id.Name,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// VerifyToken parses and validates a session token string.
func (a *Authenticator) VerifyToken(tokenStr string) (core.Identity, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return core.Identity{}, errInvalidToken
	}
	return core.Identity{UID: claims.Subject, Name: claims.Name}, nil
}

// Resolve consumes a (possibly empty) stored token and settles the
// session: an invalid or missing token resolves to signed-out, not to an
// error.
func (a *Authenticator) Resolve(tokenStr string) core.Session {
	var sess core.Session
	if tokenStr != "" {
		if id, err := a.VerifyToken(tokenStr); err == nil {
			sess.Identity = id
		}
	}
	a.mu.Lock()
	a.session = sess
	a.mu.Unlock()
	return sess
}

// Current returns the session as last resolved; Loading is true until
// the first Resolve call settles it.
func (a *Authenticator) Current() core.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}
