package id

import (
	"errors"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// ErrNotInitialized is the panic value of Snowflake.NewID before Init.
var ErrNotInitialized = errors.New("id: snowflake node not initialized")

// Init initializes the Snowflake node with the given node ID. Only the first
// call has an effect.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a new globally unique int64 ID. Facts and events use these ids,
// so their numeric order follows creation time.
func New() int64 {
	return node.Generate().Int64()
}

// Generator hands out ids. Stores take one so tests can supply fixed sequences.
type Generator interface {
	NewID() int64
}

// Snowflake is the process-wide Generator backed by New.
type Snowflake struct{}

func (Snowflake) NewID() int64 {
	if node == nil {
		panic(ErrNotInitialized)
	}
	return New()
}

// Time returns the creation time embedded in a snowflake id, in milliseconds.
func Time(v int64) int64 {
	return snowflake.ID(v).Time()
}
