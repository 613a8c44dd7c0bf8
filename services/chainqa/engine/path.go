// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

// Down is the focus move entering a nested element.
const Down = "DOWN"

// Path is a focus position expressed as the moves from the query root.
type Path []string

// Depth returns the number of moves.
func (p Path) Depth() int {
	return len(p)
}

// MoveUp truncates the path at its last Down move. A path without Down
// moves is returned unchanged.
func (p Path) MoveUp() Path {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == Down {
			out := make(Path, i)
			copy(out, p[:i])
			return out
		}
	}
	return p.clone()
}

// MoveDown appends a Down move.
func (p Path) MoveDown() Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Down)
}

func (p Path) clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}
