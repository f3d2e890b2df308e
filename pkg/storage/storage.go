package storage

import (
	"time"

	"emssimulate/pkg/runtime"
)

type StoreGroup byte

const (
	StoreGroupChannel StoreGroup = iota
	StoreGroupStation
)

var (
	StoreGroupToString = map[StoreGroup]string{
		StoreGroupChannel: "channel",
		StoreGroupStation: "station",
	}
	StoreGroupFromString = map[string]StoreGroup{
		"channel": StoreGroupChannel,
		"station": StoreGroupStation,
	}
)

// resources
const (
	// channel
	Channels = "channels"
	Points   = "points"
)

type Getter interface {
	Get(key string) (interface{}, error)
}

type Lister interface {
	List(key string) (interface{}, error)
}

type Creater interface {
	Create(key string, obj interface{}) (interface{}, error)
}

type Updater interface {
	Update(key, version string, obj interface{}) (interface{}, error)
}

type Deleter interface {
	Delete(key, version string) (interface{}, error)
}

type Storage interface {
	Getter
	Lister
	Creater
	Updater
	Deleter
}

type FileInfo struct {
	Path    string
	ModTime time.Time
}

// PointStore persistence of point records. Callers keep storage and memory in step by
// writing here first.
type PointStore interface {
	LoadPoints(channelID string) ([]*runtime.PointRecord, error)
	// CreatePoint stores a new record and returns its id, the code must be unused.
	CreatePoint(channelID string, record *runtime.PointRecord) (int64, error)
	// UpdatePointMetadata merges fields into the stored record of code. A "code" field
	// renames the record.
	UpdatePointMetadata(code string, fields map[string]interface{}) error
	DeletePoint(code string) (bool, error)
	// SavePoints replaces every record of channelID, used by bulk import.
	SavePoints(channelID string, records []*runtime.PointRecord) error
	DeleteChannel(channelID string) error
	Close() error
}

const (
	DriverFs     = "fs"
	DriverSqlite = "sqlite"
)

// NewPointStore opens the point store of driver under root. dsn is only used by the
// sqlite driver, empty means a database file under root.
func NewPointStore(driver, root, dsn string) (PointStore, error) {
	switch driver {
	case DriverSqlite:
		return NewSqlitePointStore(root, dsn)
	default:
		return NewFsPointStore(root)
	}
}
