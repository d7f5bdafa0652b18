/*
Pegweb hosts the grammar-compilation-as-a-service demo described by
server/api: submit grammar source over HTTP and get back generated Go
source, a compile ID, and whether the request reused a cached analysis.

Usage:

	pegweb [flags]

The flags are:

	-l, --listen ADDRESS:PORT
		Listen on the given address. Defaults to the value of environment
		variable STURGEON_LISTEN_ADDRESS, and if that is not given, to
		localhost:8080.

	-s, --secret TOKEN_SECRET
		Secret used to sign and validate bearer JWTs. Defaults to the value
		of environment variable STURGEON_TOKEN_SECRET. If neither is given,
		a random secret is generated and all tokens become invalid at
		shutdown.

	--key CLIENT_ID:API_KEY
		Registers one client allowed to authenticate, repeatable. If none
		are given, a single client "demo" is registered with a randomly
		generated key that is printed to stderr on startup.

	--db FILE
		sqlite file backing the compile-history store. Defaults to
		"pegweb.db" in the working directory.

Exit codes: 0 on graceful shutdown, 1 on startup failure.
*/
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/dekarrin/sturgeon/internal/version"
	"github.com/dekarrin/sturgeon/server/api"
	"github.com/dekarrin/sturgeon/server/middle"
	"github.com/dekarrin/sturgeon/server/store"
)

const (
	EnvListen = "STURGEON_LISTEN_ADDRESS"
	EnvSecret = "STURGEON_TOKEN_SECRET"
)

var (
	flagVersion = pflag.BoolP("version", "V", false, "Give the current version of pegweb and then exit.")
	flagListen  = pflag.StringP("listen", "l", "", "Listen on the given address.")
	flagSecret  = pflag.StringP("secret", "s", "", "Use the given secret for JWT signing.")
	flagKeys    = pflag.StringArray("key", nil, "Register a client as CLIENT_ID:API_KEY; repeatable.")
	flagDB      = pflag.String("db", "pegweb.db", "sqlite file backing the compile-history store.")
)

func main() {
	pflag.Parse()

	if *flagVersion {
		fmt.Printf("pegweb (sturgeon v%s)\n", version.Current)
		return
	}

	listenAddr := os.Getenv(EnvListen)
	if pflag.Lookup("listen").Changed {
		listenAddr = *flagListen
	}
	if listenAddr == "" {
		listenAddr = "localhost:8080"
	}

	secretStr := os.Getenv(EnvSecret)
	if pflag.Lookup("secret").Changed {
		secretStr = *flagSecret
	}
	var secret []byte
	if secretStr != "" {
		secret = []byte(secretStr)
	} else {
		secret = make([]byte, 64)
		if _, err := rand.Read(secret); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: could not generate token secret: %s\n", err.Error())
			os.Exit(1)
		}
		log.Printf("WARN  using generated token secret; all tokens issued will become invalid at shutdown")
	}

	keys := map[string]middle.APIKey{}
	if len(*flagKeys) == 0 {
		generated := make([]byte, 16)
		if _, err := rand.Read(generated); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: could not generate demo API key: %s\n", err.Error())
			os.Exit(1)
		}
		rawKey := hex.EncodeToString(generated)
		hashed, err := middle.HashKey(rawKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: could not hash demo API key: %s\n", err.Error())
			os.Exit(1)
		}
		keys["demo"] = middle.APIKey{ClientID: "demo", HashedKey: hashed}
		log.Printf("INFO  registered client \"demo\" with generated API key: %s", rawKey)
	} else {
		for _, spec := range *flagKeys {
			clientID, rawKey, ok := strings.Cut(spec, ":")
			if !ok || clientID == "" || rawKey == "" {
				fmt.Fprintf(os.Stderr, "ERROR: --key must be CLIENT_ID:API_KEY, got %q\n", spec)
				os.Exit(1)
			}
			hashed, err := middle.HashKey(rawKey)
			if err != nil {
				fmt.Fprintf(os.Stderr, "ERROR: could not hash API key for %q: %s\n", clientID, err.Error())
				os.Exit(1)
			}
			keys[clientID] = middle.APIKey{ClientID: clientID, HashedKey: hashed}
		}
	}
	lookup := func(clientID string) (middle.APIKey, bool) {
		k, ok := keys[clientID]
		return k, ok
	}

	history, err := store.Open(*flagDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: could not open compile history store: %s\n", err.Error())
		os.Exit(1)
	}
	defer history.Close()

	a := api.New(history)
	router := a.Router(secret, lookup)

	log.Printf("INFO  pegweb %s listening on %s", version.Current, listenAddr)
	if err := http.ListenAndServe(listenAddr, router); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: server stopped: %s\n", err.Error())
		os.Exit(1)
	}
}
