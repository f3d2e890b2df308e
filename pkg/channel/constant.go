package channel

import (
	"time"

	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/sets"
)

var patchTypes = sets.NewString(string(types.JSONPatchType), string(types.MergePatchType))

const (
	maxJSONPatchOperations = 1000
	mqttTimeout            = 1 * time.Second
	defaultPollInterval    = 1 * time.Second
	timestampLayout        = "2006-01-02T15:04:05.000Z"
)

// 不可通过元数据接口修改的字段
var immutablePointFields = sets.NewString("id", "channelId", "kind", "value")
