package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/phobologic/cloudgraph/internal/style"
)

const defaultStylePath = "cloudgraph.hcl"

// runInit implements the `cloudgraph init` subcommand, which writes the
// built-in node styles to a file for editing.
func runInit(args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("cloudgraph init", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var dryRun, force bool
	flags.BoolVar(&dryRun, "dry-run", false, "print the style file instead of writing it")
	flags.BoolVar(&force, "force", false, "overwrite an existing file")

	flags.Usage = func() {
		fmt.Fprintf(stderr, `Usage: cloudgraph init [flags] [path]

Write the built-in node styles to a file that can be passed to -style.
Paths ending in .json get the JSON form; anything else gets HCL.

path defaults to ./%s.

Flags:
`, defaultStylePath)
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	path := defaultStylePath
	if flags.NArg() > 0 {
		path = flags.Arg(0)
	}

	content, err := styleFile(path)
	if err != nil {
		return err
	}

	if dryRun {
		_, _ = stdout.Write(content)
		return nil
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use -force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("checking %s: %w", path, err)
		}
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote default styles to %s\n", path)
	return nil
}

// styleFile returns the default styles in the syntax selected by path.
func styleFile(path string) ([]byte, error) {
	if filepath.Ext(path) != ".json" {
		return style.DefaultSource(), nil
	}
	data, err := style.Default().JSON()
	if err != nil {
		return nil, fmt.Errorf("encoding styles: %w", err)
	}
	return append(data, '\n'), nil
}
