// Copyright (c) Elliot Nunn
// Licensed under the MIT license

//go:build !unix

package tarmount

func errnoName(err error) string { return "" }
