// Package result contains the uniform response type used by server/api
// handlers to separate "what HTTP response to send" from "how to send it".
package result

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
)

// ErrorResponse is the JSON body of any non-2xx Result.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// Result is the outcome of one API endpoint: an HTTP status, a JSON (or
// redirect) response body, and an internal-only message for logging.
type Result struct {
	Status      int
	IsErr       bool
	InternalMsg string

	resp  interface{}
	redir string
	hdrs  [][2]string
}

// OK returns a Result containing an HTTP-200 and respObj as the JSON body.
func OK(respObj interface{}, internalMsg string, v ...interface{}) Result {
	return response(http.StatusOK, respObj, internalMsg, v...)
}

// Created returns a Result containing an HTTP-201 and respObj as the JSON
// body.
func Created(respObj interface{}, internalMsg string, v ...interface{}) Result {
	return response(http.StatusCreated, respObj, internalMsg, v...)
}

// BadRequest returns a Result containing an HTTP-400 with userMsg as the
// visible error text.
func BadRequest(userMsg, internalMsg string, v ...interface{}) Result {
	return errResult(http.StatusBadRequest, userMsg, internalMsg, v...)
}

// NotFound returns a Result containing an HTTP-404.
func NotFound(internalMsg string, v ...interface{}) Result {
	return errResult(http.StatusNotFound, "The requested resource was not found", internalMsg, v...)
}

// Unauthorized returns a Result containing an HTTP-401 with the
// WWW-Authenticate header set for a bearer-token realm.
func Unauthorized(userMsg, internalMsg string, v ...interface{}) Result {
	if userMsg == "" {
		userMsg = "You are not authorized to do that"
	}
	return errResult(http.StatusUnauthorized, userMsg, internalMsg, v...).
		WithHeader("WWW-Authenticate", `Bearer realm="sturgeon compile service"`)
}

// InternalServerError returns a Result containing an HTTP-500. The visible
// error text never includes internalMsg.
func InternalServerError(internalMsg string, v ...interface{}) Result {
	return errResult(http.StatusInternalServerError, "An internal server error occurred", internalMsg, v...)
}

func response(status int, respObj interface{}, internalMsg string, v ...interface{}) Result {
	return Result{
		Status:      status,
		InternalMsg: fmt.Sprintf(internalMsg, v...),
		resp:        respObj,
	}
}

func errResult(status int, userMsg, internalMsg string, v ...interface{}) Result {
	return Result{
		IsErr:       true,
		Status:      status,
		InternalMsg: fmt.Sprintf(internalMsg, v...),
		resp:        ErrorResponse{Error: userMsg, Status: status},
	}
}

// WithHeader returns a copy of r with an additional response header set.
func (r Result) WithHeader(name, val string) Result {
	cp := r
	cp.hdrs = append(append([][2]string{}, r.hdrs...), [2]string{name, val})
	return cp
}

// WriteResponse marshals r's body (if any) and writes the full HTTP
// response, including headers and status line.
func (r Result) WriteResponse(w http.ResponseWriter) {
	if r.Status == 0 {
		panic("result not populated")
	}

	var body []byte
	if r.Status != http.StatusNoContent && r.resp != nil {
		var err error
		body, err = json.Marshal(r.resp)
		if err != nil {
			r = InternalServerError("marshal response: %s", err.Error())
			body, _ = json.Marshal(r.resp)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	for _, h := range r.hdrs {
		w.Header().Set(h[0], h[1])
	}
	w.WriteHeader(r.Status)
	if r.Status != http.StatusNoContent {
		w.Write(body)
	}
}

// Log writes r's internal message to the standard logger, associated with
// the request that produced it.
func (r Result) Log(req *http.Request) {
	level := "INFO "
	if r.IsErr {
		level = "ERROR"
	}
	remoteIP := strings.SplitN(req.RemoteAddr, ":", 2)[0]
	log.Printf("%s %s %s %s: HTTP-%d %s", level, remoteIP, req.Method, req.URL.Path, r.Status, r.InternalMsg)
}
