// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package sectionreader

import "errors"

var ErrTooLarge = errors.New("section too large")
