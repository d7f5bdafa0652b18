/*
Peggen compiles a PEG grammar file into a Go parser package.

It reads a grammar file written in the line-oriented, indentation-sensitive
format sturgeon accepts, runs nullability, left-recursion, and desugaring
analyses over it, and emits a Go source file implementing a packrat parser
isomorphic to the grammar.

Usage:

	peggen -g FILE [flags]

The flags are:

	-g, --grammar FILE
		Grammar source path (required).

	-o, --output FILE
		Emitted Go source destination. Defaults to stdout.

	-q, --quiet
	-v, --verbose
		Adjust logging volume: -q suppresses progress output, -v adds
		extra detail. Giving both is not rejected; each applies on its own.

	--skip-actions
		Emit default-return bodies, ignoring `{ action }` clauses.

	--config FILE
		Project defaults file. Defaults to ".sturgeon.toml" in the working
		directory, if present.

	--memoize {auto,all,none}
		Overrides the configured memoization policy.

	--cache FILE
		Read/write a compiled-artifact cache keyed by grammar content hash,
		skipping analysis when the grammar is unchanged.

Exit codes: 0 success, 1 grammar error, 2 I/O error.
*/
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/dekarrin/sturgeon/internal/peg/analysis"
	"github.com/dekarrin/sturgeon/internal/peg/bootstrap"
	"github.com/dekarrin/sturgeon/internal/peg/cache"
	"github.com/dekarrin/sturgeon/internal/peg/codegen"
	"github.com/dekarrin/sturgeon/internal/peg/config"
	"github.com/dekarrin/sturgeon/internal/peg/desugar"
	"github.com/dekarrin/sturgeon/internal/peg/session"
	"github.com/dekarrin/sturgeon/internal/version"
)

const (
	// ExitSuccess indicates a successful generation.
	ExitSuccess = iota

	// ExitGrammarError indicates an unsuccessful run due to a problem with
	// the grammar itself (parsing, validation, or analysis).
	ExitGrammarError

	// ExitIOError indicates an unsuccessful run due to a problem reading
	// the grammar file or writing the emitted output.
	ExitIOError
)

var (
	returnCode int = ExitSuccess

	flagVersion     *bool   = pflag.BoolP("version", "V", false, "Gives the version info")
	grammarFile     *string = pflag.StringP("grammar", "g", "", "Grammar source file (required)")
	outputFile      *string = pflag.StringP("output", "o", "", "Emitted Go source destination; defaults to stdout")
	quiet           *bool   = pflag.BoolP("quiet", "q", false, "Suppress progress output")
	verbose         *bool   = pflag.BoolP("verbose", "v", false, "Print extra progress detail")
	skipActions     *bool   = pflag.Bool("skip-actions", false, "Emit default-return bodies, ignoring actions")
	configFile      *string = pflag.String("config", ".sturgeon.toml", "Project defaults file")
	memoizeOverride *string = pflag.String("memoize", "", "Override configured memoization policy: auto, all, none")
	cacheFile       *string = pflag.String("cache", "", "Compiled-artifact cache file")
)

func main() {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			panic(fmt.Sprintf("unrecoverable panic occurred: %v", panicErr))
		} else {
			os.Exit(returnCode)
		}
	}()

	pflag.Parse()

	if *flagVersion {
		fmt.Printf("peggen %s\n", version.Current)
		return
	}

	if *grammarFile == "" {
		fmt.Fprintln(os.Stderr, "ERROR: -g/--grammar is required")
		returnCode = ExitGrammarError
		return
	}

	runID := session.New()
	startedAt := time.Now()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR [%s]: loading config: %s\n", runID, err.Error())
		returnCode = ExitIOError
		return
	}
	if *memoizeOverride != "" {
		cfg.Memoize = *memoizeOverride
	}
	if *skipActions {
		cfg.SkipActions = true
	}

	source, err := os.ReadFile(*grammarFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR [%s]: reading grammar file: %s\n", runID, err.Error())
		returnCode = ExitIOError
		return
	}

	logf := func(format string, a ...interface{}) {
		if *quiet {
			return
		}
		fmt.Fprintf(os.Stderr, format, a...)
	}
	vlogf := func(format string, a ...interface{}) {
		if !*verbose {
			return
		}
		fmt.Fprintf(os.Stderr, format, a...)
	}

	grammar, err := bootstrap.Parse(string(source), *grammarFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR [%s]: %s\n", runID, err.Error())
		returnCode = ExitGrammarError
		return
	}
	vlogf("[%s] parsed %s grammar rules from %s\n", runID, humanize.Comma(int64(grammar.Len())), *grammarFile)

	var cachedHit bool
	if *cacheFile != "" {
		if data, err := os.ReadFile(*cacheFile); err == nil {
			if snap, err := cache.Decode(data); err == nil && snap.SourceHash == cache.HashSource(string(source)) {
				if applyErr := cache.Apply(grammar, snap); applyErr == nil {
					cachedHit = true
					vlogf("[%s] reused cached analysis (hash %s)\n", runID, snap.SourceHash[:12])
				}
			}
		}
	}

	var freshSnap cache.Snapshot
	if !cachedHit {
		nullable := analysis.ComputeNullable(grammar)
		if _, err := analysis.ComputeLeftRecursion(grammar, nullable); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR [%s]: %s\n", runID, err.Error())
			returnCode = ExitGrammarError
			return
		}
		// snapshotted before desugaring appends synthetic rules, so a later
		// run against the same unchanged source (itself pre-desugar) has a
		// matching rule set to apply the snapshot onto.
		freshSnap = cache.Build(grammar, string(source))
	}

	if err := desugar.Run(grammar); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR [%s]: %s\n", runID, err.Error())
		returnCode = ExitGrammarError
		return
	}

	opts := codegen.Options{
		PackageName: cfg.Package,
		SkipActions: cfg.SkipActions,
		Memoize:     cfg.Memoize,
	}
	generated, err := codegen.Generate(grammar, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR [%s]: %s\n", runID, err.Error())
		returnCode = ExitGrammarError
		return
	}

	if *cacheFile != "" && !cachedHit {
		if err := os.WriteFile(*cacheFile, cache.Encode(freshSnap), 0644); err != nil {
			logf("WARNING [%s]: could not write cache file: %s\n", runID, err.Error())
		}
	}

	if *outputFile == "" {
		os.Stdout.Write(generated)
	} else {
		if err := os.WriteFile(*outputFile, generated, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR [%s]: writing output: %s\n", runID, err.Error())
			returnCode = ExitIOError
			return
		}
	}

	logf("[%s] generated %s bytes for %s rules in %s\n",
		runID,
		humanize.Comma(int64(len(generated))),
		humanize.Comma(int64(grammar.Len())),
		humanize.Time(startedAt),
	)
}
