package protocol

import (
	"context"

	"emssimulate/pkg/capture"
	"emssimulate/pkg/point"
)

type State int32

const (
	Uninitialized State = iota
	Initialized
	Running
	Stopped
)

var StateToString = map[State]string{
	Uninitialized: "uninitialized",
	Initialized:   "initialized",
	Running:       "running",
	Stopped:       "stopped",
}

func (s State) String() string {
	return StateToString[s]
}

// Capability how a handler's I/O primitives behave towards the caller.
type Capability byte

const (
	NativeAsync     Capability = iota // 自身带超时, 可直接调用
	BlockingWrapped                   // 阻塞调用, 需经 Bridge 调度
)

// Handler uniform lifecycle and point I/O of one protocol endpoint.
//
// Uninitialized -> Initialize -> Initialized -> Start -> Running -> Stop -> Stopped.
// A failed Start leaves the handler Initialized. Stop on a handler that is not
// running succeeds without effect, except on an uninitialized handler which
// reports ErrHandlerNotInitialized.
type Handler interface {
	// Initialize decodes the channel options. Only valid while not running.
	Initialize(options map[string]interface{}) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Read returns the current raw value of p. Storing it into the point is up to the
	// caller, so a read the caller gave up on never reaches the point.
	Read(ctx context.Context, p point.Point) (float64, error)
	// Write transmits a raw value, numeric callers convert from engineering units first.
	Write(ctx context.Context, p point.Point, raw float64) error
	// AddPoints registers points with the handler, registering a point twice is harmless.
	AddPoints(ps []point.Point) error
	RemovePoints(ps []point.Point) error
	State() State
	Capability() Capability
	// RebuildOnMutation reports whether adding or removing points requires the handler
	// to be torn down and built again.
	RebuildOnMutation() bool
	Messages(limit int) []capture.Message
	ClearMessages()
}

// SlaveRegistrar implemented by handlers keeping per slave tables.
type SlaveRegistrar interface {
	AddSlave(slave int) error
	// Slaves served once initialized, including those configured in the options.
	Slaves() []int
}

// Connector implemented by client handlers.
type Connector interface {
	Connected() bool
}
