package config

import (
	"emssimulate/pkg/channel"
	"emssimulate/pkg/station"
)

type Config struct {
	ChannelMgr *channel.Manager
	StationMgr *station.Manager
	CertFile   string
	KeyFile    string
}
