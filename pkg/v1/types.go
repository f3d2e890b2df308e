package v1

import (
	"emssimulate/pkg/runtime"
	"emssimulate/pkg/runtime/constant"
)

type PublishMeta struct {
	Topic string `json:"topic"`
}

// Channel create or replace request of a channel.
type Channel struct {
	PublishMeta
	Name         string                 `json:"name" binding:"required,min=1,max=64,excludesall=\u002F\u005C"`
	ProtocolType string                 `json:"protocolType" binding:"required,min=1,max=32"`
	Enabled      bool                   `json:"enabled"`
	AutoRead     bool                   `json:"autoRead"`
	Options      map[string]interface{} `json:"options"`
}

// ToChannel converts the request, the protocol type must be a known one.
func (c *Channel) ToChannel() (*runtime.Channel, bool) {
	pt, ok := constant.StringToProtocolType[c.ProtocolType]
	if !ok {
		return nil, false
	}
	return &runtime.Channel{
		ObjectMeta:   runtime.ObjectMeta{Name: c.Name},
		ProtocolType: pt,
		Enabled:      c.Enabled,
		AutoRead:     c.AutoRead,
		Options:      c.Options,
		Topic:        c.Topic,
	}, true
}

// ImportPoints bulk import of point records into a channel, replacing its points.
type ImportPoints struct {
	Points []*runtime.PointRecord `json:"points" binding:"required,dive"`
}
