package actor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKernelErrorIsMatchesByKind(t *testing.T) {
	t.Parallel()

	err := ErrNodeLost("node-a")

	require.True(t, errors.Is(err, &KernelError{Kind: KindNodeLost}))
	require.False(t, errors.Is(err, &KernelError{Kind: KindMailboxOverflow}))
}

func TestKernelErrorUnwrapsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("underlying")
	err := ErrUserFailure(cause)

	require.ErrorIs(t, err, cause)
}

func TestParseDirectiveRejectsUnknown(t *testing.T) {
	t.Parallel()

	_, err := ParseDirective("escalate")
	require.Error(t, err)

	d, err := ParseDirective("stop")
	require.NoError(t, err)
	require.Equal(t, Stop, d)
}
