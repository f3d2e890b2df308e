package station

import "emssimulate/pkg/runtime"

// StationMeta identity of the simulated station, the id is part of every publish topic.
type StationMeta struct {
	Description string `json:"description"`
	runtime.ObjectMeta
}

type ResponseModel struct {
	Cpus  interface{} `json:"cpus,omitempty"`
	Mem   interface{} `json:"mem,omitempty"`
	Disks interface{} `json:"disk,omitempty"`
}

type CpuUsageInfo struct {
	Core        int    `json:"core"`
	UsedPercent string `json:"usedPercent"`
}

type MemUsageInfo struct {
	Total       string `json:"total"`
	Used        string `json:"used"`
	UsedPercent string `json:"usedPercent"`
}

type DiskUsageInfo struct {
	Path        string `json:"path"`
	Total       string `json:"total"`
	Used        string `json:"used"`
	UsedPercent string `json:"usedPercent"`
}

const (
	station       = "meta"
	defaultName   = "emssimulate"
	percentFormat = "%.2f%%"
	cpuSampleSpan = 200 // ms
)
