package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dekarrin/sturgeon/server/middle"
	"github.com/dekarrin/sturgeon/server/store"
)

const validGrammar = "start : NAME ENDMARKER\n"

func newTestAPI(t *testing.T) (http.Handler, []byte) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	assert.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	secret := []byte("test-signing-secret")
	lookup := func(clientID string) (middle.APIKey, bool) {
		if clientID == "demo" {
			return middle.APIKey{ClientID: "demo"}, true
		}
		return middle.APIKey{}, false
	}
	api := New(st)
	return api.Router(secret, lookup), secret
}

func authedRequest(t *testing.T, secret []byte, method, target string, body []byte) *http.Request {
	t.Helper()
	tok, err := middle.GenerateToken(secret, "demo", time.Minute)
	assert.NoError(t, err)

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return req
}

func Test_HTTPCompileGrammar_ValidGrammarReturnsGeneratedSource(t *testing.T) {
	assert := assert.New(t)
	router, secret := newTestAPI(t)

	body, err := json.Marshal(CompileRequest{Source: validGrammar})
	assert.NoError(err)

	req := authedRequest(t, secret, http.MethodPost, "/v1/grammars", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(http.StatusCreated, w.Code)

	var resp CompileResponse
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(resp.ID)
	assert.Contains(resp.Generated, "package parser")
	assert.False(resp.CacheHit)
}

func Test_HTTPCompileGrammar_SecondIdenticalSubmissionIsCacheHit(t *testing.T) {
	assert := assert.New(t)
	router, secret := newTestAPI(t)

	body, err := json.Marshal(CompileRequest{Source: validGrammar})
	assert.NoError(err)

	for i, wantCacheHit := range []bool{false, true} {
		req := authedRequest(t, secret, http.MethodPost, "/v1/grammars", body)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(http.StatusCreated, w.Code, "request %d", i)

		var resp CompileResponse
		assert.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(wantCacheHit, resp.CacheHit, "request %d", i)
	}
}

func Test_HTTPCompileGrammar_EmptySourceIsBadRequest(t *testing.T) {
	assert := assert.New(t)
	router, secret := newTestAPI(t)

	body, err := json.Marshal(CompileRequest{Source: ""})
	assert.NoError(err)

	req := authedRequest(t, secret, http.MethodPost, "/v1/grammars", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(http.StatusBadRequest, w.Code)
}

func Test_HTTPCompileGrammar_MalformedGrammarIsBadRequest(t *testing.T) {
	assert := assert.New(t)
	router, secret := newTestAPI(t)

	body, err := json.Marshal(CompileRequest{Source: "this is not a grammar :::"})
	assert.NoError(err)

	req := authedRequest(t, secret, http.MethodPost, "/v1/grammars", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(http.StatusBadRequest, w.Code)
}

func Test_HTTPCompileGrammar_RequiresAuth(t *testing.T) {
	assert := assert.New(t)
	router, _ := newTestAPI(t)

	body, err := json.Marshal(CompileRequest{Source: validGrammar})
	assert.NoError(err)

	req := httptest.NewRequest(http.MethodPost, "/v1/grammars", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(http.StatusUnauthorized, w.Code)
}

func Test_HTTPGetCompile_RoundTripsWithCompileGrammar(t *testing.T) {
	assert := assert.New(t)
	router, secret := newTestAPI(t)

	body, err := json.Marshal(CompileRequest{Source: validGrammar})
	assert.NoError(err)

	req := authedRequest(t, secret, http.MethodPost, "/v1/grammars", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(http.StatusCreated, w.Code)

	var created CompileResponse
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &created))

	getReq := authedRequest(t, secret, http.MethodGet, "/v1/grammars/"+created.ID, nil)
	getW := httptest.NewRecorder()
	router.ServeHTTP(getW, getReq)

	assert.Equal(http.StatusOK, getW.Code)
}

func Test_HTTPGetCompile_UnknownIDIsNotFound(t *testing.T) {
	assert := assert.New(t)
	router, secret := newTestAPI(t)

	req := authedRequest(t, secret, http.MethodGet, "/v1/grammars/does-not-exist", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(http.StatusNotFound, w.Code)
}
