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

package journaldb

import (
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
)

// schemaVersion tags the on-disk state layout; bumped whenever the journal
// or trie encoding changes in an incompatible way.
const schemaVersion = "v5.1-sec"

// StatePath returns the on-disk directory a state database for the chain
// identified by genesisHash should live under, rooted at dataDir. The
// pruned/archive split keeps the two modes from ever sharing a directory,
// since their node retention histories are incompatible.
func StatePath(dataDir string, genesisHash common.Hash, archive bool) string {
	mode := "pruned"
	if archive {
		mode = "archive"
	}
	return filepath.Join(dataDir, genesisHash.Hex(), schemaVersion+"-"+mode, "state")
}
