// Copyright (c) Elliot Nunn
// Licensed under the MIT license

//go:build !unix

package tar

import (
	"errors"
	"io/fs"
	"os"
)

var (
	errIsDir      = errors.New("is a directory")
	errNotRegular = errors.New("not a regular file")
)

func checkRegular(f *os.File) error {
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	switch {
	case fi.Mode().IsRegular():
		return nil
	case fi.IsDir():
		return &fs.PathError{Op: "read", Path: f.Name(), Err: errIsDir}
	default:
		return &fs.PathError{Op: "read", Path: f.Name(), Err: errNotRegular}
	}
}
