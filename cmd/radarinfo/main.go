// Command radarinfo decodes a local NEXRAD Level II archive and prints a
// summary of its sweeps. With -check it also runs integrity checks and exits
// non-zero when any fail.
//
// Usage:
//
//	go run ./cmd/radarinfo radar_data/KCCX20240426_151023_V06
//	go run ./cmd/radarinfo -check radar_data/KDIX20240426_150917_V06
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/storm-radar-mosaic/internal/domain"
	"github.com/couchcryptid/storm-radar-mosaic/internal/level2"
)

func main() {
	check, files, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	failed := false
	for _, path := range files {
		ok, err := run(os.Stdout, path, check)
		if err != nil {
			fmt.Fprintf(os.Stderr, "radarinfo: %v\n", err)
			failed = true
			continue
		}
		if !ok {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

// parseArgs reads the -check flag and the file list. Usage is written to
// stderr on any error.
func parseArgs(args []string, stderr io.Writer) (check bool, files []string, err error) {
	fs := flag.NewFlagSet("radarinfo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&check, "check", false, "run integrity checks on each file")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: radarinfo [-check] FILE...\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return false, nil, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return false, nil, errors.New("no files given")
	}
	return check, fs.Args(), nil
}

// run prints the summary of one file. ok is false when a check failed.
func run(w io.Writer, path string, check bool) (bool, error) {
	v, err := level2.ReadFile(path)
	if err != nil {
		return false, err
	}

	fmt.Fprintf(w, "%s\n", path)
	fmt.Fprintln(w, volumeTable(v))
	fmt.Fprintln(w, sweepTable(v))

	if !check {
		return true, nil
	}
	phases := checkVolume(v)
	ok := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = "FAIL"
			ok = false
		}
		fmt.Fprintf(w, "[%s] %s\n", status, p.name)
		for _, e := range p.errors {
			fmt.Fprintf(w, "       %s\n", e)
		}
	}
	return ok, nil
}

func fieldList(s *domain.Sweep) []domain.Field {
	var fields []domain.Field
	for _, f := range domain.GridFields {
		if s.HasField(f) {
			fields = append(fields, f)
		}
	}
	return fields
}
