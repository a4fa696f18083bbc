// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package tarmount serves the members of tar archives over HTTP,
// straight out of the archive files.
//
// Mount a Handler under a prefix with http.StripPrefix. The rest of the URL
// path names the member, and each candidate archive is scanned for it in
// turn. Regular files are served with range and conditional request support;
// directories are forbidden, and other member types are a server error.
package tarmount

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/elliotnunn/tarmount/internal/etag"
	"github.com/elliotnunn/tarmount/internal/tar"
)

// Options configures a Handler. Archives is required.
type Options struct {
	Archives ArchiveSource

	// RelativeTo resolves relative archive paths. Empty means the working directory.
	RelativeTo string

	// ShowHidden serves members for which IsHidden is true.
	ShowHidden bool

	// Hide, if set, names further members never to serve, whatever ShowHidden says.
	Hide func(string) bool

	// Tagger produces ETag headers. Nil means hash tags from a small in-memory cache.
	Tagger *etag.Tagger

	// Logger receives one record per failed request. Nil means slog.Default().
	Logger *slog.Logger
}

// Handler serves archive members. It is safe for concurrent use.
type Handler struct {
	opts Options
	log  *slog.Logger
}

func New(opts Options) *Handler {
	if opts.Tagger == nil {
		opts.Tagger = etag.New(etag.MethodHash, etag.NewMemoryStore(1024))
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handler{opts: opts, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	selection := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case selection == "":
		h.fail(w, r, http.StatusForbidden, selection, nil)
		return
	case !h.opts.ShowHidden && IsHidden(selection),
		h.opts.Hide != nil && h.opts.Hide(selection):
		h.fail(w, r, http.StatusNotFound, selection, nil)
		return
	}

	archives, err := h.opts.Archives.Archives(r)
	if err != nil {
		status := http.StatusInternalServerError
		var he *HTTPError
		if errors.As(err, &he) {
			status = he.Status
		}
		h.fail(w, r, status, selection, err)
		return
	}

	loc, err := h.locate(r.Context(), archives, selection)
	switch {
	case errors.Is(err, tar.ErrNotFound):
		h.fail(w, r, http.StatusNotFound, selection, nil)
		return
	case err != nil:
		h.fail(w, r, http.StatusInternalServerError, selection, err)
		return
	case loc.Kind == tar.KindDirectory:
		h.fail(w, r, http.StatusForbidden, selection, nil)
		return
	}
	if err := loc.Unsupported(); err != nil {
		h.fail(w, r, http.StatusInternalServerError, selection, err)
		return
	}

	h.serve(w, r, &loc)
}

// locate tries each archive in turn, moving on from missing archives
// and archives without the member. Any other failure ends the search.
func (h *Handler) locate(ctx context.Context, archives []string, selection string) (tar.Location, error) {
	for _, a := range archives {
		loc, err := tar.Locate(ctx, resolve(h.opts.RelativeTo, a), selection)
		if errors.Is(err, tar.ErrSourceAbsent) || errors.Is(err, tar.ErrNotFound) {
			continue
		}
		return loc, err
	}
	return tar.Location{}, tar.ErrNotFound
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, loc *tar.Location) {
	m, err := loc.Open()
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, loc.Path, err)
		return
	}
	defer m.Close()

	tag, err := h.opts.Tagger.Tag(m.File(), loc.Offset, loc.Size, loc.ModTime)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, loc.Path, err)
		return
	}
	if tag != "" {
		w.Header().Set("ETag", tag)
	}

	ctype := mime.TypeByExtension(path.Ext(loc.Path))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)

	http.ServeContent(w, r, "", loc.ModTime, m)
}

// fail writes a plain status response. Server errors are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, selection string, err error) {
	if status >= 500 {
		attrs := []any{"path", selection, "status", status, "err", err}
		if name := errnoName(err); name != "" {
			attrs = append(attrs, "errno", name)
		}
		h.log.WarnContext(r.Context(), "memberServeError", attrs...)
	} else {
		h.log.DebugContext(r.Context(), "memberNotServed", "path", selection, "status", status)
	}
	http.Error(w, http.StatusText(status), status)
}
