package cmdline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimpleCommand(t *testing.T) {
	cmds, err := ParseLine("device add devA /dev/input/event0")
	require.NoError(t, err)
	require.Equal(t, [][]string{{"device", "add", "devA", "/dev/input/event0"}}, cmds)
}

func TestSemicolonSeparatesCommands(t *testing.T) {
	cmds, err := ParseLine("nop; quit")
	require.NoError(t, err)
	require.Equal(t, [][]string{{"nop"}, {"quit"}}, cmds)
}

func TestQuotedStringWithEscapes(t *testing.T) {
	cmds, err := ParseLine(`action set output-changed "echo \"hi\" > /tmp/x"`)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	require.Equal(t, []string{"action", "set", "output-changed", `echo "hi" > /tmp/x`}, cmds[0])
}

func TestUnknownEscapePreservedLiterally(t *testing.T) {
	cmds, err := ParseLine(`hotkey add "a\qb"`)
	require.NoError(t, err)
	require.Equal(t, []string{"hotkey", "add", `a\qb`}, cmds[0])
}

func TestUnquotedEscapeAllowsSemicolonInToken(t *testing.T) {
	cmds, err := ParseLine(`exec echo a\;b`)
	require.NoError(t, err)
	require.Equal(t, [][]string{{"exec", "echo", "a;b"}}, cmds)
}

func TestEmptyCommandIsNoOp(t *testing.T) {
	cmds, err := ParseLine("   ")
	require.NoError(t, err)
	require.Nil(t, cmds)
}

func TestIsComment(t *testing.T) {
	require.True(t, IsComment("  # a comment; with semicolons"))
	require.False(t, IsComment("device add devA /dev/input/event0"))
}

func TestSingleQuotes(t *testing.T) {
	cmds, err := ParseLine(`device rename devA 'new name'`)
	require.NoError(t, err)
	require.Equal(t, []string{"device", "rename", "devA", "new name"}, cmds[0])
}
