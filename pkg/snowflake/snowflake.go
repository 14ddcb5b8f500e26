// Package snowflake generates 63-bit time-ordered ids. Messages use these as
// both primary id and history cursor: ids generated later always compare
// greater, so clustering by id preserves append order.
package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	workerBits       = 10
	seqBits          = 12
	workerMax        = -1 ^ (-1 << workerBits)
	seqMask          = -1 ^ (-1 << seqBits)
	timeShift        = workerBits + seqBits
	workerShift      = seqBits
	epochMilli int64 = 1704067200000 // 2024-01-01 00:00:00 UTC
)

type Node struct {
	mu     sync.Mutex
	last   int64
	worker int64
	seq    int64
}

// NewNode creates a generator for the given worker id (0..1023). Worker ids
// must be unique per process instance for ids to be globally unique.
func NewNode(worker int64) (*Node, error) {
	if worker < 0 || worker > workerMax {
		return nil, errors.New("snowflake: worker id must be between 0 and 1023")
	}
	return &Node{worker: worker}, nil
}

// Generate returns the next id. Safe for concurrent use.
func (n *Node) Generate() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := time.Now().UnixMilli()
	if now < n.last {
		// Clock went backwards; hold the line until it catches up.
		now = n.last
	}

	if now == n.last {
		n.seq = (n.seq + 1) & seqMask
		if n.seq == 0 {
			for now <= n.last {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		n.seq = 0
	}
	n.last = now

	return ((now - epochMilli) << timeShift) | (n.worker << workerShift) | n.seq
}
