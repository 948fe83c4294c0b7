// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package block

import (
	"errors"
	"fmt"
)

// BlockError is the structured error kind returned across block lifecycle
// and verification stages: which stage produced it, which field it concerns,
// and the underlying cause.
type BlockError struct {
	Stage string
	Field string
	Err   error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Field, e.Err)
}

func (e *BlockError) Unwrap() error { return e.Err }

var (
	ErrTooManyUncles     = errors.New("block: uncle count exceeds engine maximum")
	ErrExtraDataTooLarge = errors.New("block: extra data exceeds engine maximum size")
	ErrInvalidSealArity  = errors.New("block: seal field count does not match engine's seal_fields")
)
