package storage

import (
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"emssimulate/pkg/apis"
	"emssimulate/pkg/runtime"
	"emssimulate/pkg/utils/fileutil"
	"emssimulate/pkg/utils/randutil"
	"github.com/pkg/errors"
	"golang.org/x/mod/sumdb"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

// FsClient stores one json document per key under the directory of its store group.
// Versioned writes take an exclusive file lock and compare the stored eTag first.
type FsClient struct {
	storePath string
}

var _ Storage = (*FsClient)(nil)

var groupDirs = map[StoreGroup][]string{
	StoreGroupChannel: {Channels, Points},
	StoreGroupStation: {},
}

// removeBackoff retries removals failing with a sharing violation or a busy file.
var removeBackoff = wait.Backoff{Duration: 10 * time.Millisecond, Factor: 2, Steps: 6}

// NewFsClient prepares the directories of sg under root.
func NewFsClient(root string, sg StoreGroup) (*FsClient, error) {
	dirs, ok := groupDirs[sg]
	if !ok {
		return nil, errors.Errorf("unsupported store group %d", sg)
	}
	fc := &FsClient{storePath: filepath.Join(root, StoreGroupToString[sg])}
	for _, d := range append([]string{""}, dirs...) {
		p := filepath.Join(fc.storePath, d)
		if _, err := os.Stat(p); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return nil, err
		}
		absPath, _ := filepath.Abs(p)
		klog.V(2).InfoS("Created", "path", absPath)
		if err := os.MkdirAll(p, 0711); err != nil {
			return nil, err
		}
	}
	return fc, nil
}

func (fc *FsClient) Path(key string) string {
	return filepath.Join(fc.storePath, key)
}

// Create fails with os.ErrExist when key is taken.
func (fc *FsClient) Create(key string, obj interface{}) (interface{}, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		klog.V(2).InfoS("Failed to encode", "key", key, "err", err)
		return nil, err
	}
	f, err := os.OpenFile(fc.Path(key), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0640)
	if err != nil {
		klog.V(2).InfoS("Failed to create file", "key", key, "err", err)
		return nil, err
	}
	defer f.Close()
	if _, err = f.Write(append(data, '\n')); err != nil {
		klog.V(2).InfoS("Failed to write", "key", key, "err", err)
		return nil, err
	}
	return obj, nil
}

// Get returns the raw document of key.
func (fc *FsClient) Get(key string) (interface{}, error) {
	data, err := os.ReadFile(fc.Path(key))
	if err != nil {
		klog.V(4).InfoS("Failed to read", "key", key, "err", err)
		return nil, err
	}
	return data, nil
}

// List returns every regular file below key as []*FileInfo.
func (fc *FsClient) List(key string) (interface{}, error) {
	files := make([]*FileInfo, 0)
	err := filepath.WalkDir(fc.Path(key), func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, &FileInfo{Path: path, ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		klog.V(2).InfoS("Failed to list", "key", key, "err", err)
	}
	return files, nil
}

// Delete removes key. An empty version skips the eTag check, used by cascading deletes.
func (fc *FsClient) Delete(key, version string) (interface{}, error) {
	if len(version) > 0 {
		err := fc.withVersion(key, os.O_RDONLY, version, func(*os.File) error { return nil })
		if err != nil {
			return nil, err
		}
	}

	var removeErr error
	_ = wait.ExponentialBackoff(removeBackoff, func() (bool, error) {
		removeErr = os.Remove(fc.Path(key))
		return !isEphemeralError(removeErr), nil
	})
	switch {
	case removeErr == nil, len(version) == 0 && os.IsNotExist(removeErr):
		return nil, nil
	case isEphemeralError(removeErr):
		return nil, sumdb.ErrWriteConflict
	default:
		klog.V(2).InfoS("Failed to remove", "key", key, "err", removeErr)
		return nil, apis.ErrInternal
	}
}

// Update replaces the document of key and bumps the eTag of obj.
func (fc *FsClient) Update(key, version string, obj interface{}) (interface{}, error) {
	accessor, err := runtime.Accessor(obj)
	if err != nil {
		klog.V(2).InfoS("Failed to get accessor", "err", err)
		return nil, apis.ErrInternal
	}
	err = fc.withVersion(key, os.O_RDWR, version, func(f *os.File) error {
		ver, _ := strconv.ParseUint(version, 10, 64)
		accessor.SetVersion(strconv.FormatUint(ver+uint64(randutil.Intn(100))+1, 10))
		data, err := json.Marshal(obj)
		if err != nil {
			accessor.SetVersion(version)
			klog.V(2).InfoS("Failed to marshal", "key", key, "err", err)
			return apis.ErrInternal
		}
		if err = f.Truncate(0); err != nil {
			klog.V(2).InfoS("Failed to truncate", "key", key, "err", err)
			return apis.ErrInternal
		}
		if _, err = f.WriteAt(append(data, '\n'), 0); err != nil {
			klog.V(2).InfoS("Failed to write", "key", key, "err", err)
			return apis.ErrInternal
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// withVersion runs fn while key is locked and its stored eTag equals version.
func (fc *FsClient) withVersion(key string, flag int, version string, fn func(f *os.File) error) error {
	f, err := fc.open(key, flag)
	if err != nil {
		return err
	}
	defer f.Close()

	lock, err := fileutil.NewLock(f)
	if err != nil {
		klog.V(2).InfoS("Failed to lock", "key", key, "err", err)
		return sumdb.ErrWriteConflict
	}
	defer lock.Release()

	data, err := io.ReadAll(f)
	if err != nil {
		klog.V(2).InfoS("Failed to read", "key", key, "err", err)
		return apis.ErrInternal
	}
	var stored struct {
		runtime.ObjectMeta
	}
	if err = json.Unmarshal(data, &stored); err != nil {
		klog.V(2).InfoS("Failed to unmarshal", "key", key, "err", err)
		return apis.ErrInternal
	}
	if stored.Version != version {
		return apis.ErrMismatch
	}
	return fn(f)
}

func (fc *FsClient) open(key string, flag int) (*os.File, error) {
	f, err := os.OpenFile(fc.Path(key), flag, 0640)
	switch {
	case err == nil:
		return f, nil
	case os.IsNotExist(err):
		return nil, os.ErrNotExist
	case isEphemeralError(err):
		return nil, sumdb.ErrWriteConflict
	default:
		klog.V(2).InfoS("Failed to open file", "key", key, "err", err)
		return nil, err
	}
}
