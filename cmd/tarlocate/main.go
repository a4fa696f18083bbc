// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// tarlocate reports where a member's data lives inside a tar archive.
//
// Usage:
//
//	tarlocate archive.tar member     print the member's location as JSON
//	tarlocate --cat archive.tar member
//	tarlocate --list archive.tar     print every entry, one per line
//
// The exit status is 0 when the member is found, 1 when it or the archive
// does not exist, and 2 for any other failure.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/elliotnunn/tarmount/internal/tar"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

const (
	exitFound    = 0
	exitNotFound = 1
	exitError    = 2
)

// location is the JSON form of a tar.Location.
type location struct {
	Archive  string    `json:"archive"`
	Path     string    `json:"path"`
	Type     string    `json:"type"`
	Offset   int64     `json:"offset"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"modTime"`
	Linkname string    `json:"linkname,omitempty"`
}

func run(args []string, stdout, stderr io.Writer) int {
	var list, cat bool

	flagSet := pflag.NewFlagSet("tarlocate", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.BoolVarP(&list, "list", "l", false, "list every entry instead of locating one")
	flagSet.BoolVarP(&cat, "cat", "c", false, "write the member's data instead of its location")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return exitFound
		}
		return exitError
	}

	rest := flagSet.Args()
	var err error
	switch {
	case list && len(rest) == 1:
		err = listEntries(stdout, rest[0])
	case !list && len(rest) == 2:
		err = locate(stdout, rest[0], rest[1], cat)
	default:
		fmt.Fprintln(stderr, "usage: tarlocate [--cat] archive member | tarlocate --list archive")
		return exitError
	}

	switch {
	case err == nil:
		return exitFound
	case errors.Is(err, tar.ErrNotFound), errors.Is(err, tar.ErrSourceAbsent):
		fmt.Fprintf(stderr, "tarlocate: %v\n", err)
		return exitNotFound
	default:
		fmt.Fprintf(stderr, "tarlocate: %v\n", err)
		return exitError
	}
}

func locate(w io.Writer, archive, member string, cat bool) error {
	loc, err := tar.Locate(context.Background(), archive, member)
	if err != nil {
		return err
	}

	if !cat {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(location{
			Archive:  loc.Archive,
			Path:     loc.Path,
			Type:     (&tar.Header{Kind: loc.Kind, Typeflag: loc.Typeflag}).TypeString(),
			Offset:   loc.Offset,
			Size:     loc.Size,
			ModTime:  loc.ModTime.UTC(),
			Linkname: loc.Linkname,
		})
	}

	if loc.Kind != tar.KindFile {
		if err := loc.Unsupported(); err != nil {
			return err
		}
		return fmt.Errorf("%s is a directory", loc.Path)
	}
	m, err := loc.Open()
	if err != nil {
		return err
	}
	defer m.Close()
	_, err = io.Copy(w, m)
	return err
}

func listEntries(w io.Writer, archive string) error {
	f, err := os.Open(archive)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", tar.ErrSourceAbsent, archive)
	} else if err != nil {
		return err
	}
	defer f.Close()

	for e, err := range tar.Entries(f) {
		if err != nil {
			return fmt.Errorf("%s: %w", archive, err)
		}
		fmt.Fprintf(w, "%-10s %10d %10d %s\n", e.TypeString(), e.DataOffset, e.Size, e.Path)
	}
	return nil
}
