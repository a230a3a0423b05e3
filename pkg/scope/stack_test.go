package scope_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/tmscope/pkg/grammar"
	"github.com/walteh/tmscope/pkg/scope"
)

func TestStack(t *testing.T) {
	t.Run("test_push_does_not_modify_receiver", func(t *testing.T) {
		root := scope.Root("source.go")
		a := root.Push(1, "string.quoted")
		b := a.Push(2, "constant.character.escape")

		assert.Equal(t, []string{"source.go"}, scope.Resolve(root))
		assert.Equal(t, []string{"source.go", "string.quoted"}, scope.Resolve(a))
		assert.Equal(t, []string{"source.go", "string.quoted", "constant.character.escape"}, scope.Resolve(b))
		assert.Equal(t, 2, b.Depth())
		assert.Equal(t, grammar.RuleID(2), b.Rule())
	})

	t.Run("test_pop_returns_parent", func(t *testing.T) {
		root := scope.Root("source.go")
		a := root.Push(1, "meta.block")

		parent, err := a.Pop()
		require.NoError(t, err)
		assert.Same(t, root, parent)
	})

	t.Run("test_pop_root_underflows", func(t *testing.T) {
		_, err := scope.Root("source.go").Pop()
		require.ErrorIs(t, err, scope.ErrStackUnderflow)
	})

	t.Run("test_equal_compares_names", func(t *testing.T) {
		a := scope.Root("source.go").Push(1, "string")
		b := scope.Root("source.go").Push(7, "string")
		c := scope.Root("source.go").Push(1, "comment")

		assert.True(t, a.Equal(b))
		assert.False(t, a.Equal(c))
		assert.False(t, a.Equal(a.Parent()))
	})
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		stack *scope.Stack
		want  []string
	}{
		{
			name:  "test_nil_stack",
			stack: nil,
			want:  nil,
		},
		{
			name:  "test_empty_root_is_skipped",
			stack: scope.Root("").Push(1, "keyword.control"),
			want:  []string{"keyword.control"},
		},
		{
			name:  "test_unnamed_frames_are_skipped",
			stack: scope.Root("source.go").Push(1, "").Push(2, "variable"),
			want:  []string{"source.go", "variable"},
		},
		{
			name:  "test_space_separated_names",
			stack: scope.Root("source.go").Push(1, "meta.function entity.name.function"),
			want:  []string{"source.go", "meta.function", "entity.name.function"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scope.Resolve(tt.stack))
		})
	}
}
