// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzhttp"

	"github.com/elliotnunn/tarmount/internal/config"
	"github.com/elliotnunn/tarmount/internal/etag"
	"github.com/elliotnunn/tarmount/internal/tarmount"
)

// buildMux mounts one handler per route. The returned func closes
// the digest database, if one was opened.
func buildMux(cfg *config.Config, logger *slog.Logger) (http.Handler, func(), error) {
	store, closeStore, err := openStore(cfg.ETagCache, logger)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	for _, rt := range cfg.Routes {
		h, err := routeHandler(cfg, rt, store, logger)
		if err != nil {
			closeStore()
			return nil, nil, fmt.Errorf("route %s: %w", rt.Prefix, err)
		}
		pattern := rt.MountPattern()
		mux.Handle(pattern, http.StripPrefix(strings.TrimSuffix(pattern, "/"), h))
	}
	return mux, closeStore, nil
}

func routeHandler(cfg *config.Config, rt config.Route, store etag.Store, logger *slog.Logger) (http.Handler, error) {
	opts := tarmount.Options{
		Archives:   tarmount.Glob(cfg.RelativeTo, rt.Archives...),
		RelativeTo: cfg.RelativeTo,
		ShowHidden: rt.ShowHidden,
		Tagger:     etag.New(rt.ETagMethod(), store),
		Logger:     logger.With("route", rt.Prefix),
	}
	if len(rt.Hide) > 0 {
		opts.Hide = tarmount.HidePatterns(rt.Hide...)
	}

	var h http.Handler = tarmount.New(opts)
	if !rt.Compress {
		return h, nil
	}

	minSize := gzhttp.DefaultMinSize
	if rt.CompressMinSize > 0 {
		minSize = rt.CompressMinSize
	}

	// A compressed body is a different representation and needs its own tag.
	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(minSize), gzhttp.SuffixETag("-gzip"))
	if err != nil {
		return nil, err
	}
	return wrap(h), nil
}

// openStore builds the digest cache shared by every route: memory first,
// then the database when a directory is configured.
func openStore(c config.CacheConfig, logger *slog.Logger) (etag.Store, func(), error) {
	entries := c.Entries
	if entries == 0 {
		entries = config.Default().ETagCache.Entries
	}
	mem := etag.NewMemoryStore(entries)
	if c.Dir == "" {
		return mem, func() {}, nil
	}

	disk, err := etag.OpenDiskStore(c.Dir, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("etag_cache.dir: %w", err)
	}
	closeDisk := func() {
		if err := disk.Close(); err != nil {
			logger.Warn("etagCacheCloseError", "dir", c.Dir, "err", err)
		}
	}
	return etag.Tiered(mem, disk), closeDisk, nil
}
