package ordernum

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
)

const (
	prefix = "ORD-"

	// encodedWidth is the base36 width of the largest int64, so zero-padded
	// numbers sort lexicographically in id order.
	encodedWidth = 13
)

// Generator issues human-readable order numbers backed by a snowflake node.
// Numbers are globally unique and lexicographically non-decreasing.
type Generator struct {
	node *snowflake.Node
}

func NewGenerator(node *snowflake.Node) *Generator {
	return &Generator{node: node}
}

func (g *Generator) Next() string {
	return Format(g.node.Generate())
}

// Format renders a snowflake id as an ORD- prefixed, zero-padded base36 string.
func Format(id snowflake.ID) string {
	encoded := strings.ToUpper(strconv.FormatInt(int64(id), 36))
	if pad := encodedWidth - len(encoded); pad > 0 {
		encoded = strings.Repeat("0", pad) + encoded
	}
	return prefix + encoded
}
