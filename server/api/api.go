// Package api provides the HTTP surface of the grammar-compilation-as-a-
// service demo: submit grammar source, get back generated Go source or a
// formatted diagnostic. It uses a chi router, an EndpointFunc/Endpoint
// adapter, and per-endpoint methods on an API struct holding shared
// dependencies.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dekarrin/sturgeon/internal/peg/analysis"
	"github.com/dekarrin/sturgeon/internal/peg/bootstrap"
	"github.com/dekarrin/sturgeon/internal/peg/cache"
	"github.com/dekarrin/sturgeon/internal/peg/codegen"
	"github.com/dekarrin/sturgeon/internal/peg/desugar"
	"github.com/dekarrin/sturgeon/server/middle"
	"github.com/dekarrin/sturgeon/server/result"
	"github.com/dekarrin/sturgeon/server/store"
)

// snapshotCache holds the most recently built analysis snapshot for each
// grammar content hash seen by this process, guarded by a mutex since
// endpoints run concurrently across requests.
type snapshotCache struct {
	mu   sync.Mutex
	data map[string]cache.Snapshot
}

func newSnapshotCache() *snapshotCache {
	return &snapshotCache{data: make(map[string]cache.Snapshot)}
}

func (c *snapshotCache) get(hash string) (cache.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.data[hash]
	return snap, ok
}

func (c *snapshotCache) put(hash string, snap cache.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[hash] = snap
}

// PathPrefix is the prefix under which every route in this package is
// mounted.
const PathPrefix = "/v1"

// API holds the dependencies every endpoint needs.
type API struct {
	History *store.Store

	// snapshots holds the most recent analysis result per grammar content
	// hash, letting repeat submissions of identical grammar text skip
	// nullability/left-recursion analysis via internal/peg/cache, mirroring
	// cmd/peggen's --cache flag without needing a shared file.
	snapshots *snapshotCache
}

// New constructs an API backed by history.
func New(history *store.Store) API {
	return API{History: history, snapshots: newSnapshotCache()}
}

// Router builds the full chi.Router for the API, with panic recovery and
// bearer-token auth applied to every route.
func (api API) Router(secret []byte, lookup middle.KeyLookup) http.Handler {
	r := chi.NewRouter()
	r.Use(asChiMiddleware(middle.DontPanic()))
	r.Use(asChiMiddleware(middle.RequireBearer(secret, lookup, 250*time.Millisecond)))

	r.Route(PathPrefix, func(r chi.Router) {
		r.Post("/grammars", api.HTTPCompileGrammar())
		r.Get("/grammars/{id}", api.HTTPGetCompile())
	})

	return r
}

func asChiMiddleware(m middle.Middleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return m(next) }
}

// EndpointFunc computes a result.Result from a request, without writing
// anything to the ResponseWriter directly.
type EndpointFunc func(req *http.Request) result.Result

// Endpoint adapts an EndpointFunc into an http.HandlerFunc: it runs the
// endpoint, logs the outcome, and writes the HTTP response.
func Endpoint(ep EndpointFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		defer panicTo500(w, req)
		r := ep(req)
		r.WriteResponse(w)
		r.Log(req)
	}
}

func panicTo500(w http.ResponseWriter, req *http.Request) {
	if panicErr := recover(); panicErr != nil {
		r := result.InternalServerError("panic: %v\nSTACK TRACE: %s", panicErr, string(debug.Stack()))
		r.WriteResponse(w)
		r.Log(req)
	}
}

// CompileRequest is the body of POST /v1/grammars.
type CompileRequest struct {
	Source      string `json:"source"`
	SkipActions bool   `json:"skip_actions"`
	Memoize     string `json:"memoize"`
}

// CompileResponse is the JSON body returned on a successful compile.
type CompileResponse struct {
	ID        string `json:"id"`
	Generated string `json:"generated"`
	RuleCount int    `json:"rule_count"`
	CacheHit  bool   `json:"cache_hit"`
}

// HTTPCompileGrammar returns the handler for POST /v1/grammars.
func (api API) HTTPCompileGrammar() http.HandlerFunc {
	return Endpoint(api.epCompileGrammar)
}

func (api API) epCompileGrammar(req *http.Request) result.Result {
	var body CompileRequest
	if err := parseJSON(req, &body); err != nil {
		return result.BadRequest(err.Error(), err.Error())
	}
	if body.Source == "" {
		return result.BadRequest("source: property is empty or missing from request", "empty source")
	}

	grammar, err := bootstrap.Parse(body.Source, "<request>")
	if err != nil {
		return result.BadRequest(err.Error(), "grammar parse: %s", err.Error())
	}

	hash := cache.HashSource(body.Source)
	cacheHit := false
	if snap, ok := api.snapshots.get(hash); ok {
		if err := cache.Apply(grammar, snap); err == nil {
			cacheHit = true
		}
	}

	if !cacheHit {
		nullable := analysis.ComputeNullable(grammar)
		if _, err := analysis.ComputeLeftRecursion(grammar, nullable); err != nil {
			return result.BadRequest(err.Error(), "analysis: %s", err.Error())
		}
		// snapshotted before desugaring appends synthetic rules, so a
		// future identical submission (itself pre-desugar) has a matching
		// rule set to apply the snapshot onto.
		api.snapshots.put(hash, cache.Build(grammar, body.Source))
	}
	if err := desugar.Run(grammar); err != nil {
		return result.BadRequest(err.Error(), "desugar: %s", err.Error())
	}

	opts := codegen.Options{SkipActions: body.SkipActions, Memoize: body.Memoize}
	generated, err := codegen.Generate(grammar, opts)
	if err != nil {
		return result.BadRequest(err.Error(), "codegen: %s", err.Error())
	}

	id := uuid.NewString()
	if _, err := api.History.Record(req.Context(), id, hash, grammar.Len(), cacheHit); err != nil {
		return result.InternalServerError("recording compile history: %s", err.Error())
	}

	resp := CompileResponse{
		ID:        id,
		Generated: string(generated),
		RuleCount: grammar.Len(),
		CacheHit:  cacheHit,
	}
	return result.Created(resp, "compiled grammar (%d rules, hash %s)", grammar.Len(), hash[:12])
}

// HTTPGetCompile returns the handler for GET /v1/grammars/{id}.
func (api API) HTTPGetCompile() http.HandlerFunc {
	return Endpoint(api.epGetCompile)
}

func (api API) epGetCompile(req *http.Request) result.Result {
	id := chi.URLParam(req, "id")
	if id == "" {
		return result.BadRequest("id: missing from path", "missing id path param")
	}

	c, err := api.History.GetByID(req.Context(), id)
	if err != nil {
		return result.NotFound("compile %q: %s", id, err.Error())
	}

	return result.OK(c, "retrieved compile record %q", id)
}

func parseJSON(req *http.Request, v interface{}) error {
	contentType := req.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/json" {
		return fmt.Errorf("request content-type is not application/json")
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return fmt.Errorf("could not read request body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("malformed JSON in request")
	}
	return nil
}
