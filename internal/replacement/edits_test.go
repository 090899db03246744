package replacement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEdits(t *testing.T) {
	content := []byte(`import a from "@/a"; import b from "@/b";`)

	out, offsets, err := ApplyEdits(content, []Edit{
		{Offset: 15, Old: "@/a", New: "./lib/a"},
		{Offset: 36, Old: "@/b", New: "../b"},
	})
	require.NoError(t, err)
	assert.Equal(t, `import a from "./lib/a"; import b from "../b";`, string(out))
	assert.Equal(t, []int{15, 40}, offsets)
}

func TestApplyEditsRejectsBadInput(t *testing.T) {
	content := []byte(`import a from "@/a";`)

	tests := []struct {
		name  string
		edits []Edit
	}{
		{"mismatched text", []Edit{{Offset: 15, Old: "@/b", New: "x"}}},
		{"out of range", []Edit{{Offset: 100, Old: "@/a", New: "x"}}},
		{"overlapping", []Edit{{Offset: 15, Old: "@/a", New: "x"}, {Offset: 16, Old: "/a", New: "y"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ApplyEdits(content, tt.edits)
			assert.Error(t, err)
		})
	}
}

func TestRemapSpecifiers(t *testing.T) {
	scanner := NewRegexScanner()
	content := []byte("import a from './a';\nimport b from './a';\nconst c = './a';\n")

	t.Run("by value", func(t *testing.T) {
		out, n := RemapSpecifiers(scanner, content, map[string]string{"./a": "@/a"}, nil)
		assert.Equal(t, 2, n)
		assert.Equal(t, "import a from '@/a';\nimport b from '@/a';\nconst c = './a';\n", string(out))
	})

	t.Run("offset hints win", func(t *testing.T) {
		hints := map[int]Edit{36: {Offset: 36, Old: "./a", New: "@/other"}}
		out, n := RemapSpecifiers(scanner, content, nil, hints)
		assert.Equal(t, 1, n)
		assert.Equal(t, "import a from './a';\nimport b from '@/other';\nconst c = './a';\n", string(out))
	})

	t.Run("nothing to do", func(t *testing.T) {
		out, n := RemapSpecifiers(scanner, content, map[string]string{"./z": "@/z"}, nil)
		assert.Zero(t, n)
		assert.Equal(t, content, out)
	})
}
