package uid

import (
	"crypto/sha256"
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
)

// Snowflake generates time-ordered int64 IDs suitable for primary keys.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake creates a generator whose node ID comes from the NODE_ID
// environment variable, falling back to a hash of the hostname so
// replicas on different hosts diverge without configuration.
func NewSnowflake() (*Snowflake, error) {
	var nodeID int64

	if v := os.Getenv("NODE_ID"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		nodeID = parsed % 1024
	} else {
		host, err := os.Hostname()
		if err != nil {
			return nil, err
		}
		sum := sha256.Sum256([]byte(host))
		nodeID = int64(sum[0])<<2 | int64(sum[1])&0x03
	}

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}

	return &Snowflake{node: node}, nil
}

// Generate returns a new snowflake ID.
func (s *Snowflake) Generate() int64 {
	return s.node.Generate().Int64()
}
