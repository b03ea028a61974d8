// Package clidriver translates CLI flags into a session.Options and
// supplies a small in-memory sample program to exercise the pipeline, since
// a concrete-syntax parser is an external non-goal of this module.
package clidriver

import (
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/oxhq/basecode/internal/session"
)

// RegisterFlags installs every §6.1 session option onto fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Bool("verbose", false, "Also print the session-task tree after the diagnostics.")
	fs.Int("heap-size", 0, "Initial VM heap size in bytes (0 = driver default).")
	fs.Int("stack-size", 0, "VM stack size in bytes (0 = driver default).")
	fs.Int("ffi-heap-size", 4096, "FFI heap size in bytes.")
	fs.Bool("output-ast-graphs", false, "Recorded in the session options; no DOM graph file is written.")
	fs.String("dom-graph-file", "", "DOM graph file path, recorded in the session options; nothing is written to it.")
	fs.String("compiler-path", "", "Compiler binary path, recorded in the session options; module paths are resolved against the working directory.")
	fs.StringSlice("module-path", nil, "Glob pattern searched for importable modules; may be repeated.")
	fs.String("definitions-file", "", "A .env-style file of key=value constants injected into the root module.")
	fs.String("cache-file", ".basecode/cache.db", "Path to the compile-cache sqlite file (empty disables caching).")
	fs.Bool("debug-sql", false, "Log compile-cache SQL statements.")
}

// BuildOptions resolves fs's parsed flags into a session.Options, expanding
// --module-path glob patterns and loading --definitions-file if set.
func BuildOptions(fs *pflag.FlagSet) (session.Options, error) {
	opts := session.DefaultOptions()

	opts.Verbose, _ = fs.GetBool("verbose")
	opts.HeapSize, _ = fs.GetInt("heap-size")
	opts.StackSize, _ = fs.GetInt("stack-size")
	if fs.Changed("ffi-heap-size") {
		opts.FFIHeapSize, _ = fs.GetInt("ffi-heap-size")
	}
	opts.OutputASTGraphs, _ = fs.GetBool("output-ast-graphs")
	opts.DOMGraphFile, _ = fs.GetString("dom-graph-file")
	opts.CompilerPath, _ = fs.GetString("compiler-path")

	patterns, _ := fs.GetStringSlice("module-path")
	paths, err := expandModulePaths(patterns)
	if err != nil {
		return opts, err
	}
	opts.ModulePaths = paths

	if defFile, _ := fs.GetString("definitions-file"); defFile != "" {
		defs, err := godotenv.Read(defFile)
		if err != nil {
			return opts, fmt.Errorf("reading definitions file: %w", err)
		}
		opts.Definitions = defs
	}

	return opts, nil
}

// expandModulePaths resolves each doublestar glob pattern against the
// process's working directory.
func expandModulePaths(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	fsys := os.DirFS(".")
	var out []string
	for _, p := range patterns {
		matches, err := doublestar.Glob(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("module path pattern %q: %w", p, err)
		}
		out = append(out, matches...)
	}
	return out, nil
}
