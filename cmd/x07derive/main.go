// Command x07derive is the reference CLI wrapper around the x07 schema
// deriver.
//
// Usage:
//
//	x07derive derive [options] <schema-file>
//	x07derive version
//
// Derive Command:
//
//	Load and normalize a schema file, then render its runtime/tests
//	modules.
//
//	Options:
//	  -out-dir string     Output directory (default ".")
//	  -write              Write modules to disk (default false)
//	  -check              Validate and render without writing (default false;
//	                       checking is also what runs when -write is absent,
//	                       and -check together with -write is rejected)
//	  -report-json        Print a JSON report instead of plain text
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/blockberries/x07/pkg/emitter"
	"github.com/blockberries/x07/pkg/hostcap/osfs"
)

func main() {
	// Additive: derive-command defaults may be overridden by a .env file
	// if one is present, but nothing requires it to exist.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "derive":
		cmdDerive(os.Args[2:])
	case "version":
		fmt.Println("x07derive (x07 schema deriver & stream pipe elaborator)")
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`x07derive

Usage:
  x07derive <command> [options] <files>...

Commands:
  derive      Load a schema file and render its modules
  version     Print version information
  help        Print this help message

Run 'x07derive derive -h' for command-specific help.`)
}

func cmdDerive(args []string) {
	fs := flag.NewFlagSet("derive", flag.ExitOnError)
	outDir := fs.String("out-dir", envDefault("X07DERIVE_OUT_DIR", "."), "Output directory")
	write := fs.Bool("write", false, "Write modules to disk")
	check := fs.Bool("check", false, "Validate and render without writing")
	reportJSON := fs.Bool("report-json", false, "Print a JSON report instead of plain text")

	fs.Usage = func() {
		fmt.Println(`Usage: x07derive derive [options] <schema-file>

Load and normalize a schema file, then render its runtime/tests modules.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected exactly one schema file")
		fs.Usage()
		os.Exit(1)
	}

	// -check is the default mode; -write is what actually touches disk.
	// They're mutually exclusive: -write always persists, so an explicit
	// -check alongside it is a contradiction in the request.
	if *write && *check {
		fmt.Fprintln(os.Stderr, "Error: -write and -check are mutually exclusive")
		os.Exit(1)
	}

	input := fs.Arg(0)
	fsys := osfs.New()
	d := emitter.NewDeriver(*outDir, fsys, fsys, *write)

	report, err := d.Derive(context.Background(), input)
	drifted := errors.Is(err, emitter.ErrDrift)
	if err != nil && !drifted {
		logrus.WithError(err).WithField("input", input).Error("derive failed")
	}

	if *reportJSON {
		out, mErr := report.Marshal()
		if mErr != nil {
			fmt.Fprintf(os.Stderr, "Error rendering report: %v\n", mErr)
			os.Exit(1)
		}
		fmt.Print(out)
	} else if err == nil || drifted {
		verb := "Checked"
		if *write {
			verb = "Wrote"
		}
		for _, f := range report.Files {
			fmt.Printf("%s: %s\n", verb, f.Path)
		}
		if report.Drift && !*write {
			fmt.Println("Drift detected: rendered output differs from what is on disk")
		}
	}

	if err != nil {
		os.Exit(1)
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
