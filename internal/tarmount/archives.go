// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package tarmount

import (
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// An ArchiveSource lists the archive files to search for a request,
// in the order they should be tried.
type ArchiveSource interface {
	Archives(r *http.Request) ([]string, error)
}

// StaticArchives is a fixed list of archive files.
type StaticArchives []string

func (s StaticArchives) Archives(*http.Request) ([]string, error) { return s, nil }

// ArchivesFunc computes the list per request. An *HTTPError it returns
// is passed to the client with its own status.
type ArchivesFunc func(r *http.Request) ([]string, error)

func (f ArchivesFunc) Archives(r *http.Request) ([]string, error) { return f(r) }

// Glob expands doublestar patterns on every request, so that archives
// can come and go while the server runs. Relative patterns are taken
// relative to root, and matches are returned as absolute paths.
// Matches are tried pattern by pattern, and within a pattern in lexical order.
//
// A pattern without metacharacters is passed through as it is, so that an
// absent or unreadable archive is reported by the handler. A directory that
// cannot be searched fails the whole list.
func Glob(root string, patterns ...string) ArchiveSource {
	return globArchives{root, patterns}
}

type globArchives struct {
	root     string
	patterns []string
}

func (g globArchives) Archives(*http.Request) ([]string, error) {
	var list []string
	for _, p := range g.patterns {
		p = resolve(g.root, p)
		if !hasMeta(p) {
			list = append(list, absolute(p))
			continue
		}
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFailOnIOErrors())
		if err != nil {
			return nil, fmt.Errorf("archive pattern %q: %w", p, err)
		}
		slices.Sort(matches)
		for _, m := range matches {
			list = append(list, absolute(m))
		}
	}
	return list, nil
}

// hasMeta reports whether doublestar would treat p as a pattern.
// Backslashes only escape where they are not separators.
func hasMeta(p string) bool {
	return strings.ContainsAny(filepath.ToSlash(p), `*?[{\`)
}

func absolute(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func resolve(root, name string) string {
	if root == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(root, name)
}

// HTTPError carries a status code back to the client.
type HTTPError struct {
	Status int
	Err    error
}

func (e *HTTPError) Error() string {
	if e.Err == nil {
		return http.StatusText(e.Status)
	}
	return e.Err.Error()
}

func (e *HTTPError) Unwrap() error { return e.Err }
