package gossipsim

// network.go holds the contract every network backend honors, whether
// deliveries are simulated on a tick clock, on a virtual clock, or carried
// over real sockets.

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for network operations.
var (
	ErrUnsupported   = errors.New("operation not supported by this network")
	ErrNotConnected  = errors.New("not connected to the provided agent")
	ErrUnknownAgent  = errors.New("unknown agent")
	ErrTooManyAgents = errors.New("more agents requested than exist")
	ErrNoAgents      = errors.New("network has no agents")
	ErrClosed        = errors.New("network closed")
)

// Network is the operation set a test driver and its agents use.  The
// simulated engines never return an error from the send primitives;
// probabilistic loss is silent.
type Network interface {
	// GeneratePeers rebuilds the peer relation as a random graph
	GeneratePeers(targetDegree int) error

	// Tick advances the network by one unit of simulated time
	Tick() error

	// Run drives the network for the given number of seconds, pacing ticks by sleep
	Run(ctx context.Context, seconds, sleep float64) error

	// Broadcast sends payload to every peer of sender
	Broadcast(sender Agent, payload []byte) error

	// SendToOne sends payload to one randomly selected peer of sender
	SendToOne(sender Agent, payload []byte) error

	// DirectSend sends payload to the agent whose identity is to
	DirectSend(sender Agent, to AgentID, payload []byte) error

	// KnockOfflineRandom isolates n randomly selected agents and returns their ids
	KnockOfflineRandom(n int) ([]AgentID, error)

	// Partition splits the peer relation in two and returns the ids of the first group
	Partition() ([]AgentID, error)
}

// OpError reports an operation a backend refused to perform.
type OpError struct {
	Backend string
	Op      string
	Err     error
}

// Error returns the error message.
func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error {
	return e.Err
}

func unsupported(backend, op string) error {
	return &OpError{Backend: backend, Op: op, Err: ErrUnsupported}
}

// checkPayload enforces the payload contract of the simulated engines
func checkPayload(payload []byte) {
	if payload == nil {
		panic("gossipsim: nil payload passed to a send primitive")
	}
}
