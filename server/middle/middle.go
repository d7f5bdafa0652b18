// Package middle contains middleware for server/api: a context-keyed auth
// handler wrapping http.Handler, and a panic-recovery wrapper.
package middle

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/dekarrin/sturgeon/server/result"
)

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(next http.Handler) http.Handler

// ctxKey is a private type so context values set by this package can't
// collide with keys set elsewhere.
type ctxKey int

const (
	ctxClientID ctxKey = iota
)

// APIKey is one bcrypt-hashed API key accepted by RequireBearer, keyed by
// the client ID embedded as the JWT subject.
type APIKey struct {
	ClientID  string
	HashedKey string // bcrypt hash of the raw key material
}

// HashKey bcrypt-hashes a raw API key for storage as APIKey.HashedKey.
func HashKey(raw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash API key: %w", err)
	}
	return string(h), nil
}

// KeyLookup resolves a client ID (the JWT subject) to its stored APIKey.
type KeyLookup func(clientID string) (APIKey, bool)

type bearerHandler struct {
	secret        []byte
	lookup        KeyLookup
	unauthedDelay time.Duration
	next          http.Handler
}

// RequireBearer returns Middleware that validates a JWT bearer token
// against secret and rejects requests whose subject does not resolve via
// lookup, delaying the response by unauthedDelay on any failure so
// unauthenticated traffic is deprioritized rather than rejected instantly.
func RequireBearer(secret []byte, lookup KeyLookup, unauthedDelay time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return &bearerHandler{secret: secret, lookup: lookup, unauthedDelay: unauthedDelay, next: next}
	}
}

func (h *bearerHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	tok, err := bearerToken(req)
	if err != nil {
		h.reject(w, req, err.Error())
		return
	}

	var clientID string
	_, err = jwt.Parse(tok, func(t *jwt.Token) (interface{}, error) {
		subj, err := t.Claims.GetSubject()
		if err != nil {
			return nil, fmt.Errorf("cannot get subject: %w", err)
		}
		clientID = subj
		return h.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer("sturgeon"), jwt.WithLeeway(time.Minute))
	if err != nil {
		h.reject(w, req, err.Error())
		return
	}

	if _, ok := h.lookup(clientID); !ok {
		h.reject(w, req, fmt.Sprintf("unknown client %q", clientID))
		return
	}

	ctx := context.WithValue(req.Context(), ctxClientID, clientID)
	h.next.ServeHTTP(w, req.WithContext(ctx))
}

func (h *bearerHandler) reject(w http.ResponseWriter, req *http.Request, internalMsg string) {
	r := result.Unauthorized("", internalMsg)
	time.Sleep(h.unauthedDelay)
	r.WriteResponse(w)
	r.Log(req)
}

func bearerToken(req *http.Request) (string, error) {
	hdr := req.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(hdr, prefix) {
		return "", fmt.Errorf("missing or malformed Authorization header")
	}
	return strings.TrimPrefix(hdr, prefix), nil
}

// ClientID retrieves the authenticated client ID set by RequireBearer.
func ClientID(req *http.Request) (string, bool) {
	v, ok := req.Context().Value(ctxClientID).(string)
	return v, ok
}

// GenerateToken issues a short-lived HS256 JWT for clientID, signed with
// secret.
func GenerateToken(secret []byte, clientID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"iss": "sturgeon",
		"sub": clientID,
		"exp": time.Now().Add(ttl).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(secret)
}

// DontPanic returns Middleware that converts a panic in the wrapped
// handler into an HTTP-500 instead of crashing the process.
func DontPanic() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			defer panicTo500(w, req)
			next.ServeHTTP(w, req)
		})
	}
}

func panicTo500(w http.ResponseWriter, req *http.Request) {
	if panicErr := recover(); panicErr != nil {
		r := result.InternalServerError("panic: %v\nSTACK TRACE: %s", panicErr, string(debug.Stack()))
		r.WriteResponse(w)
		r.Log(req)
	}
}

// VerifyKey checks raw against a stored bcrypt hash.
func VerifyKey(stored APIKey, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored.HashedKey), []byte(raw)) == nil
}
