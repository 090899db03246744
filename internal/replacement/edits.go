package replacement

import (
	"bytes"
	"fmt"
)

// Edit replaces Old with New at byte Offset.
type Edit struct {
	Offset int
	Old    string
	New    string
}

// ApplyEdits applies edits to content and returns the new content together
// with the offset of each edit in it. Edits must be sorted by Offset and
// must not overlap; every Old must be present at its Offset.
func ApplyEdits(content []byte, edits []Edit) ([]byte, []int, error) {
	var buf bytes.Buffer
	buf.Grow(len(content))
	newOffsets := make([]int, len(edits))

	last := 0
	for i, e := range edits {
		end := e.Offset + len(e.Old)
		if e.Offset < last || end > len(content) {
			return nil, nil, fmt.Errorf("edit %d at offset %d is out of order or out of range", i, e.Offset)
		}
		if string(content[e.Offset:end]) != e.Old {
			return nil, nil, fmt.Errorf("edit %d at offset %d: expected %q", i, e.Offset, e.Old)
		}

		buf.Write(content[last:e.Offset])
		newOffsets[i] = buf.Len()
		buf.WriteString(e.New)
		last = end
	}
	buf.Write(content[last:])

	return buf.Bytes(), newOffsets, nil
}

// RemapSpecifiers rewrites every specifier found by scanner whose value is a
// key of mapping. Offset hints, keyed by the offset a specifier is expected
// at, take priority over plain value matches, so a logged edit lands on the
// exact occurrence it was recorded for. It returns the new content and the
// number of specifiers changed.
func RemapSpecifiers(scanner Scanner, content []byte, mapping map[string]string, hints map[int]Edit) ([]byte, int) {
	var edits []Edit
	for _, occ := range scanner.Scan(content) {
		if hint, ok := hints[occ.Start]; ok && hint.Old == occ.Value {
			edits = append(edits, Edit{Offset: occ.Start, Old: occ.Value, New: hint.New})
			continue
		}
		if to, ok := mapping[occ.Value]; ok && to != occ.Value {
			edits = append(edits, Edit{Offset: occ.Start, Old: occ.Value, New: to})
		}
	}
	if len(edits) == 0 {
		return content, 0
	}

	newContent, _, err := ApplyEdits(content, edits)
	if err != nil {
		return content, 0
	}
	return newContent, len(edits)
}
