package tool

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// OrderRefGenerator produces per-attempt gateway order references. A snowflake
// id carries the timestamp and sequence; a random suffix keeps references from
// separate processes sharing a node id distinct.
type OrderRefGenerator struct {
	node *snowflake.Node
}

func NewOrderRefGenerator(nodeID int64) (*OrderRefGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}
	return &OrderRefGenerator{node: node}, nil
}

func (g *OrderRefGenerator) Next() string {
	var buf [3]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("ORD-%s-%s", g.node.Generate().Base36(), hex.EncodeToString(buf[:]))
}
