package repository

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// IDGenerator hands out order ids. Ids are unique per node, increase with
// creation time and sort lexicographically in the same order.
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator creates a generator for node (0-1023)
func NewIDGenerator(node int64) (*IDGenerator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("failed to create id node %d: %w", node, err)
	}
	return &IDGenerator{node: n}, nil
}

// Next returns a new order id such as ord_0001798213482983424
func (g *IDGenerator) Next() string {
	return fmt.Sprintf("ord_%019d", g.node.Generate().Int64())
}
