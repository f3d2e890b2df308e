package station

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"emssimulate/pkg/runtime"
	"emssimulate/pkg/storage"
	"emssimulate/pkg/utils/randutil"
	"emssimulate/pkg/utils/uuidutil"
	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"k8s.io/klog/v2"
)

type Manager struct {
	mu          sync.RWMutex
	client      *storage.FsClient
	stationMeta *StationMeta
}

func NewStationManager(root string) (*Manager, error) {
	client, err := storage.NewFsClient(root, storage.StoreGroupStation)
	if err != nil {
		return nil, err
	}
	return &Manager{client: client, stationMeta: &StationMeta{}}, nil
}

// Init loads the station meta, a missing meta is created with a fresh id.
func (m *Manager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sd, err := m.client.Get(station)
	if err != nil && os.IsNotExist(err) {
		m.stationMeta = &StationMeta{
			ObjectMeta: runtime.ObjectMeta{
				Name:    defaultName,
				ID:      uuidutil.UUID(),
				Version: strconv.FormatUint(randutil.Uint64n(), 10),
				ModTime: time.Now(),
			},
		}
		klog.V(3).InfoS("Station information not exist,been created automatically", "stationId", m.stationMeta.ID)
		if _, err := m.client.Create(station, m.stationMeta); err != nil {
			klog.V(2).InfoS("Failed to create station information", "err", err)
			return err
		}
		return nil
	} else if err != nil {
		return err
	}
	meta := &StationMeta{}
	if err = json.NewDecoder(bytes.NewReader(sd.([]byte))).Decode(meta); err != nil {
		klog.V(2).InfoS("Failed to unmarshal station information", "err", err)
		return err
	}
	m.stationMeta = meta
	return nil
}

func (m *Manager) GetStationMeta() *StationMeta {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta := *m.stationMeta
	return &meta
}

// UpdateStationMeta renames the station, version must match the stored one.
func (m *Manager) UpdateStationMeta(version, name, description string) (*StationMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta := *m.stationMeta
	meta.Name = name
	meta.Description = description
	meta.ModTime = time.Now()
	if _, err := m.client.Update(station, version, &meta); err != nil {
		return nil, err
	}
	m.stationMeta = &meta
	klog.V(3).InfoS("Updated station information", "stationId", meta.ID, "name", name)
	ret := meta
	return &ret, nil
}

func (m *Manager) getStationCpu() ([]CpuUsageInfo, error) {
	percents, err := cpu.Percent(cpuSampleSpan*time.Millisecond, true)
	if err != nil {
		klog.V(2).InfoS("Failed to get cpu usage", "err", err)
		return nil, err
	}
	infos := make([]CpuUsageInfo, 0, len(percents))
	for i, p := range percents {
		infos = append(infos, CpuUsageInfo{Core: i, UsedPercent: fmt.Sprintf(percentFormat, p)})
	}
	return infos, nil
}

func (m *Manager) getStationMem() (*MemUsageInfo, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		klog.V(2).InfoS("Failed to get memory usage", "err", err)
		return nil, err
	}
	return &MemUsageInfo{
		Total:       humanize.IBytes(vm.Total),
		Used:        humanize.IBytes(vm.Used),
		UsedPercent: fmt.Sprintf(percentFormat, vm.UsedPercent),
	}, nil
}

func (m *Manager) getStationDisk() ([]DiskUsageInfo, error) {
	partitions, err := disk.Partitions(false)
	if err != nil {
		klog.V(2).InfoS("Failed to get disk partitions", "err", err)
		return nil, err
	}
	infos := make([]DiskUsageInfo, 0, len(partitions))
	for _, p := range partitions {
		usage, err := disk.Usage(p.Mountpoint)
		if err != nil {
			klog.V(4).InfoS("Failed to get disk usage", "path", p.Mountpoint, "err", err)
			continue
		}
		infos = append(infos, DiskUsageInfo{
			Path:        usage.Path,
			Total:       humanize.IBytes(usage.Total),
			Used:        humanize.IBytes(usage.Used),
			UsedPercent: fmt.Sprintf(percentFormat, usage.UsedPercent),
		})
	}
	return infos, nil
}
