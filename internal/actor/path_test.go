package actor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePathRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []string{
		"/",
		"/a",
		"/a/b/c",
		"/a/$3",
		"cellmesh://node-1:9000/a/b",
		"cellmesh://symbolic-name/a",
	}

	for _, raw := range cases {
		p, err := ParsePath(raw)
		require.NoError(t, err, raw)
		require.Equal(t, raw, p.String())
	}
}

func TestParsePathRejectsMissingLeadingSlash(t *testing.T) {
	t.Parallel()

	_, err := ParsePath("a/b")
	require.Error(t, err)
}

func TestParsePathRejectsEmptySegment(t *testing.T) {
	t.Parallel()

	_, err := ParsePath("/a//b")
	require.Error(t, err)
}

func TestPathChildAndParent(t *testing.T) {
	t.Parallel()

	root := MustParsePath("/a")
	child := root.Child("b")
	require.Equal(t, "/a/b", child.String())

	parent, ok := child.Parent()
	require.True(t, ok)
	require.Equal(t, root, parent)

	_, ok = Path{}.Parent()
	require.False(t, ok)
}

func TestPathLocalStripsNode(t *testing.T) {
	t.Parallel()

	p := MustParsePath("cellmesh://node-1:9000/a/b")
	local := p.Local()
	require.Equal(t, "/a/b", local.String())
	require.Equal(t, NodeID(""), local.Node)
}

func TestPathIsRemote(t *testing.T) {
	t.Parallel()

	local := Path{Node: "me", Segments: []string{"a"}}
	require.False(t, local.IsRemote("me"))
	require.True(t, local.IsRemote("someone-else"))

	relative := Path{Segments: []string{"a"}}
	require.False(t, relative.IsRemote("me"))
}

func TestParseNodeIDRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := ParseNodeID("")
	require.Error(t, err)

	_, err = ParseNodeID("host:notaport")
	require.Error(t, err)

	_, err = ParseNodeID("bad id")
	require.Error(t, err)

	id, err := ParseNodeID("127.0.0.1:9000")
	require.NoError(t, err)
	require.Equal(t, NodeID("127.0.0.1:9000"), id)
}
