package runtime

// ETagMaxInitialValue just a value, meaningless
const ETagMaxInitialValue int64 = 3294967296

const (
	DefaultPageSize = 20
	MaxPageSize     = 1000
)

type ChannelStatus byte

const (
	Stopped ChannelStatus = iota
	Running
	Error
)

var ChannelStatusToString = map[ChannelStatus]string{
	Stopped: "stopped",
	Running: "running",
	Error:   "error",
}

type ChannelAction byte

const (
	Start ChannelAction = iota
	Stop
	Restart
	StartAutoRead
	StopAutoRead
)

var StringToChannelAction = map[string]ChannelAction{
	"start":         Start,
	"stop":          Stop,
	"restart":       Restart,
	"startAutoRead": StartAutoRead,
	"stopAutoRead":  StopAutoRead,
}
