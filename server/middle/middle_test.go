package middle

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_HashKey_VerifyKey_RoundTrip(t *testing.T) {
	assert := assert.New(t)

	hashed, err := HashKey("super-secret-key")
	assert.NoError(err)
	assert.NotEqual("super-secret-key", hashed)

	key := APIKey{ClientID: "demo", HashedKey: hashed}
	assert.True(VerifyKey(key, "super-secret-key"))
	assert.False(VerifyKey(key, "wrong-key"))
}

func Test_GenerateToken_AndRequireBearer_AuthenticatesValidToken(t *testing.T) {
	assert := assert.New(t)

	secret := []byte("test-signing-secret")
	tok, err := GenerateToken(secret, "demo", time.Minute)
	assert.NoError(err)

	lookup := func(clientID string) (APIKey, bool) {
		if clientID == "demo" {
			return APIKey{ClientID: "demo"}, true
		}
		return APIKey{}, false
	}

	var gotClientID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotClientID, _ = ClientID(req)
		w.WriteHeader(http.StatusOK)
	})

	handler := RequireBearer(secret, lookup, 0)(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(http.StatusOK, w.Code)
	assert.Equal("demo", gotClientID)
}

func Test_RequireBearer_RejectsMissingHeader(t *testing.T) {
	assert := assert.New(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("inner handler must not run without a valid bearer token")
	})
	handler := RequireBearer([]byte("secret"), func(string) (APIKey, bool) { return APIKey{}, false }, 0)(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(http.StatusUnauthorized, w.Code)
}

func Test_RequireBearer_RejectsUnknownClient(t *testing.T) {
	assert := assert.New(t)

	secret := []byte("test-signing-secret")
	tok, err := GenerateToken(secret, "ghost", time.Minute)
	assert.NoError(err)

	inner := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("inner handler must not run for an unrecognized client")
	})
	handler := RequireBearer(secret, func(string) (APIKey, bool) { return APIKey{}, false }, 0)(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(http.StatusUnauthorized, w.Code)
}

func Test_RequireBearer_RejectsWrongSigningSecret(t *testing.T) {
	assert := assert.New(t)

	tok, err := GenerateToken([]byte("right-secret"), "demo", time.Minute)
	assert.NoError(err)

	inner := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("inner handler must not run when the signature does not verify")
	})
	handler := RequireBearer([]byte("wrong-secret"), func(string) (APIKey, bool) { return APIKey{}, true }, 0)(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(http.StatusUnauthorized, w.Code)
}

func Test_DontPanic_ConvertsPanicToInternalServerError(t *testing.T) {
	assert := assert.New(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		panic("boom")
	})
	handler := DontPanic()(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(http.StatusInternalServerError, w.Code)
}
