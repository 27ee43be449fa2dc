package ordernum

import (
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
)

func TestNextUniqueAndMonotonic(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	gen := NewGenerator(node)

	const n = 10000
	seen := make(map[string]struct{}, n)
	prev := ""
	for i := 0; i < n; i++ {
		num := gen.Next()

		require.True(t, strings.HasPrefix(num, "ORD-"), "number %q missing prefix", num)
		require.Len(t, num, len("ORD-")+encodedWidth)

		if _, dup := seen[num]; dup {
			t.Fatalf("duplicate order number %q at iteration %d", num, i)
		}
		seen[num] = struct{}{}

		if prev != "" && num < prev {
			t.Fatalf("order numbers not monotonic: %q < %q", num, prev)
		}
		prev = num
	}
}

func TestFormatPadsShortIDs(t *testing.T) {
	got := Format(snowflake.ID(1))
	require.Equal(t, "ORD-0000000000001", got)
	require.Equal(t, len("ORD-")+encodedWidth, len(got))
}
