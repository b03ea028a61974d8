package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oxhq/basecode/internal/clidriver"
	"github.com/oxhq/basecode/internal/session"
	"github.com/oxhq/basecode/internal/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "basecode",
		Short: "Basecode semantic core and byte-code emitter",
		Long:  "Drives the CodeDOM evaluator, resolver, and emitter over parsed module ASTs through to an assembled byte-code image.",
	}

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Compile the built-in sample program and print its diagnostics, task tree (with --verbose), and image section counts",
		RunE:  runBuild,
	}
	clidriver.RegisterFlags(buildCmd.Flags())

	rootCmd.AddCommand(buildCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	opts, err := clidriver.BuildOptions(cmd.Flags())
	if err != nil {
		return err
	}

	cacheFile, _ := cmd.Flags().GetString("cache-file")
	debugSQL, _ := cmd.Flags().GetBool("debug-sql")

	modules, mainModule := clidriver.Sample()
	source := clidriver.SampleSource()

	var cache *store.Store
	if cacheFile != "" {
		cache, err = store.Open(cacheFile, debugSQL)
		if err != nil {
			return fmt.Errorf("opening compile cache: %w", err)
		}
		defer cache.Close()

		if cache.IsCached(mainModule, source) {
			fmt.Println("main: unchanged since last compile, skipping re-evaluation")
			return nil
		}
		if diffText, changed, derr := cache.Diff(mainModule, source); derr == nil && changed {
			fmt.Println(diffText)
		}
	}

	sess := session.New(opts)
	img := sess.Compile(modules, mainModule)

	sess.PrintDiagnostics(os.Stdout)
	if opts.Verbose {
		sess.PrintTasks(os.Stdout)
	}

	if cache != nil {
		tasks := make([]store.Task, 0, len(sess.Tasks))
		for _, t := range sess.Tasks {
			tasks = append(tasks, store.Task{Name: t.Name, Category: t.Category, ElapsedMicros: t.ElapsedMicros})
		}
		if err := cache.Record(mainModule, source, img == nil); err != nil {
			fmt.Fprintf(os.Stderr, "warning: recording compile cache: %v\n", err)
		}
		if err := cache.RecordTasks(mainModule, tasks); err != nil {
			fmt.Fprintf(os.Stderr, "warning: recording task tree: %v\n", err)
		}
	}

	if img == nil {
		return fmt.Errorf("compilation failed")
	}

	fmt.Printf("image: text=%d ro_data=%d data=%d bss=%d blobs\n",
		len(img.Text), len(img.RoData), len(img.Data), len(img.Bss))
	return nil
}
