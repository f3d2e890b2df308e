package generic

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"emssimulate/pkg/runtime"
	"emssimulate/pkg/storage"
	"k8s.io/klog/v2"
)

// Store persists channels as one json document per channel under the channel group.
type Store struct {
	Group    string
	Resource string
	client   *storage.FsClient
}

func NewStore(root string, group string, resource string) (*Store, error) {
	client, err := storage.NewFsClient(root, storage.StoreGroupFromString[group])
	if err != nil {
		return nil, err
	}
	return &Store{
		Group:    group,
		Resource: resource,
		client:   client,
	}, nil
}

func (s *Store) key(id string) string {
	return filepath.Join(s.Resource, id+".json")
}

func (s *Store) Create(obj *runtime.Channel) (*runtime.Channel, error) {
	if _, err := s.client.Create(s.key(obj.GetID()), obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Update replaces the stored channel when its version still equals version, the new
// version is written into obj.
func (s *Store) Update(obj *runtime.Channel, version string) (*runtime.Channel, error) {
	if _, err := s.client.Update(s.key(obj.GetID()), version, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (s *Store) Delete(obj *runtime.Channel) (*runtime.Channel, error) {
	if _, err := s.client.Delete(s.key(obj.GetID()), obj.GetVersion()); err != nil {
		return nil, err
	}
	return obj, nil
}

// LoadResource decodes every stored channel, unreadable files are skipped.
func (s *Store) LoadResource() ([]*runtime.Channel, error) {
	objs, err := s.client.List(s.Resource)
	if err != nil {
		return nil, err
	}

	var ret []*runtime.Channel
	files, _ := objs.([]*storage.FileInfo)
	for _, file := range files {
		if !strings.HasSuffix(file.Path, ".json") {
			continue
		}
		func() {
			f, err := os.Open(file.Path)
			if err != nil {
				klog.V(2).InfoS("Failed to open", "file", file.Path, "resource", s.Resource, "err", err)
				return
			}
			defer f.Close()
			obj := &runtime.Channel{}
			if err = json.NewDecoder(f).Decode(obj); err != nil {
				klog.V(3).InfoS("Failed to unmarshal", "file", file.Path, "resource", s.Resource, "err", err)
				return
			}
			obj.SetModTime(file.ModTime)
			ret = append(ret, obj)
		}()
	}
	return ret, nil
}
