package storage

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	nodeOnce sync.Once
	node     *snowflake.Node
	nodeErr  error
)

// NextID returns a new process-unique record id. Backends use it so that ids
// are ordered by insertion time regardless of the database in use.
func NextID() (int64, error) {
	nodeOnce.Do(func() {
		node, nodeErr = snowflake.NewNode(1)
	})
	if nodeErr != nil {
		return 0, fmt.Errorf("snowflake: %w", nodeErr)
	}
	return node.Generate().Int64(), nil
}
