package result

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_OK_WriteResponse(t *testing.T) {
	assert := assert.New(t)

	r := OK(map[string]string{"hello": "world"}, "ok")
	w := httptest.NewRecorder()
	r.WriteResponse(w)

	assert.Equal(http.StatusOK, w.Code)
	assert.Equal("application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal("world", body["hello"])
}

func Test_BadRequest_WriteResponse_Body(t *testing.T) {
	assert := assert.New(t)

	r := BadRequest("missing field foo", "validation failed: foo required")
	w := httptest.NewRecorder()
	r.WriteResponse(w)

	assert.Equal(http.StatusBadRequest, w.Code)

	var body ErrorResponse
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal("missing field foo", body.Error)
	assert.Equal(http.StatusBadRequest, body.Status)
}

func Test_Unauthorized_SetsWWWAuthenticateHeader(t *testing.T) {
	assert := assert.New(t)

	r := Unauthorized("", "no token")
	w := httptest.NewRecorder()
	r.WriteResponse(w)

	assert.Equal(http.StatusUnauthorized, w.Code)
	assert.Contains(w.Header().Get("WWW-Authenticate"), "Bearer")

	var body ErrorResponse
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal("You are not authorized to do that", body.Error)
}

func Test_InternalServerError_NeverLeaksInternalMsg(t *testing.T) {
	assert := assert.New(t)

	r := InternalServerError("db connection refused: %s", "127.0.0.1:5432")
	w := httptest.NewRecorder()
	r.WriteResponse(w)

	var body ErrorResponse
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal("An internal server error occurred", body.Error)
	assert.NotContains(w.Body.String(), "127.0.0.1")
}

func Test_WithHeader_DoesNotMutateOriginal(t *testing.T) {
	assert := assert.New(t)

	base := OK(nil, "ok")
	withHdr := base.WithHeader("X-Test", "1")

	w1 := httptest.NewRecorder()
	base.WriteResponse(w1)
	assert.Empty(w1.Header().Get("X-Test"))

	w2 := httptest.NewRecorder()
	withHdr.WriteResponse(w2)
	assert.Equal("1", w2.Header().Get("X-Test"))
}

func Test_Log_FormatsRemoteIPAndStatus(t *testing.T) {
	r := NotFound("rule %q not found", "start")
	req := httptest.NewRequest(http.MethodGet, "/rules/start", nil)
	req.RemoteAddr = "203.0.113.9:54321"

	// Log writes to the standard logger; this just exercises the path for
	// panics (e.g. on a malformed RemoteAddr) without one being expected.
	r.Log(req)
}
