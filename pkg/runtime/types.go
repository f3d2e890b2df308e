package runtime

import (
	"context"
	"encoding/json"

	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
)

var _ Object = (*Channel)(nil)

type LabeledCloser struct {
	Label  string
	Closer func(context.Context) error
}

// PointRecord raw point record as supplied by import or persisted by a point store.
type PointRecord struct {
	ID            int64                `json:"id,omitempty"`
	ChannelID     string               `json:"channelId,omitempty"`
	Kind          constant.PointKind   `json:"kind"`                    // 点类型 measurement status control setpoint
	Code          string               `json:"code"`                    // 点位编码, 全局唯一
	Name          string               `json:"name"`                    // 点位名称
	SlaveID       int                  `json:"slaveId"`                 // 从站地址 0-255
	Address       string               `json:"address"`                 // 配置地址, 按协议解析
	FunctionCode  uint8                `json:"functionCode,omitempty"`  // 功能码
	DecodeCode    string               `json:"decode,omitempty"`        // 解析码 0x41
	Scale         *float64             `json:"scale,omitempty"`         // 系数, 缺省为1
	Offset        float64              `json:"offset,omitempty"`        // 偏移
	MinLimit      float64              `json:"minLimit,omitempty"`      // 工程值下限
	MaxLimit      float64              `json:"maxLimit,omitempty"`      // 工程值上限
	BitOffset     uint8                `json:"bitOffset,omitempty"`     // 位偏移
	CommandType   constant.CommandType `json:"commandType,omitempty"`   // 单点/双点命令
	RelatedStatus string               `json:"relatedStatus,omitempty"` // 遥控关联的遥信编码
	Enabled       *bool                `json:"enabled,omitempty"`
	Value         float64              `json:"value,omitempty"` // 初始原始值
}

func (r *PointRecord) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Merge applies json keyed fields onto a copy of r. The id and the owning channel
// never change.
func (r *PointRecord) Merge(fields map[string]interface{}) (*PointRecord, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	m := make(map[string]interface{})
	if err = json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for k, v := range fields {
		if k == "id" || k == "channelId" {
			continue
		}
		m[k] = v
	}
	if data, err = json.Marshal(m); err != nil {
		return nil, err
	}
	merged := &PointRecord{}
	if err = json.Unmarshal(data, merged); err != nil {
		return nil, errors.Wrap(err, "merge point fields")
	}
	if len(merged.Code) == 0 {
		return nil, errors.New("point code is required")
	}
	merged.ID = r.ID
	merged.ChannelID = r.ChannelID
	return merged, nil
}

func (r *PointRecord) ScaleOrDefault() float64 {
	if r.Scale == nil {
		return 1
	}
	return *r.Scale
}

// Channel connection descriptor owning the points of one protocol endpoint.
type Channel struct {
	ObjectMeta
	ProtocolType constant.ProtocolType  `json:"protocolType"`
	Enabled      bool                   `json:"enabled"`
	AutoRead     bool                   `json:"autoRead"`
	Options      map[string]interface{} `json:"options,omitempty"` // 连接参数, 由各协议解析
	Topic        string                 `json:"topic,omitempty"`
}

type ChannelInfo struct {
	*Channel
	Status     string `json:"status"`
	AutoRead   bool   `json:"autoReading"`
	PointCount int    `json:"pointCount"`
	Slaves     []int  `json:"slaves"`
	Error      string `json:"error,omitempty"` // 最近一次启动失败原因
}

type ResponseModel struct {
	Channels interface{} `json:"channels,omitempty"`
	Points   interface{} `json:"points,omitempty"`
	Messages interface{} `json:"messages,omitempty"`
	Total    int         `json:"total,omitempty"`
}

type PointData struct {
	DataPointId string      `json:"dataPointId"`
	Value       interface{} `json:"value"`
}

type TimeSeriesData struct {
	Timestamp string      `json:"timestamp"`
	Values    []PointData `json:"values"`
}

type Payload struct {
	Data []TimeSeriesData `json:"data"`
}

type PublishData struct {
	Payload Payload `json:"payload"`
}
