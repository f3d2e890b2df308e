package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"emssimulate/pkg/runtime"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var _ PointStore = (*FsPointStore)(nil)

// FsPointStore keeps the records of each channel in points/<channelId>.json.
type FsPointStore struct {
	client *FsClient
	mu     sync.Mutex
	owners map[string]string // code -> channel
	nextID int64
}

func NewFsPointStore(root string) (*FsPointStore, error) {
	client, err := NewFsClient(root, StoreGroupChannel)
	if err != nil {
		return nil, err
	}
	s := &FsPointStore{
		client: client,
		owners: make(map[string]string),
		nextID: 1,
	}
	objs, _ := client.List(Points)
	for _, file := range objs.([]*FileInfo) {
		if filepath.Ext(file.Path) != ".json" {
			continue
		}
		channelID := strings.TrimSuffix(filepath.Base(file.Path), ".json")
		records, err := s.read(channelID)
		if err != nil {
			klog.V(2).InfoS("Failed to load points", "file", file.Path, "err", err)
			continue
		}
		for _, r := range records {
			s.owners[r.Code] = channelID
			if r.ID >= s.nextID {
				s.nextID = r.ID + 1
			}
		}
	}
	return s, nil
}

func (s *FsPointStore) key(channelID string) string {
	return filepath.Join(Points, channelID+".json")
}

func (s *FsPointStore) read(channelID string) ([]*runtime.PointRecord, error) {
	data, err := s.client.Get(s.key(channelID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var records []*runtime.PointRecord
	if err = json.Unmarshal(data.([]byte), &records); err != nil {
		return nil, errors.Wrapf(err, "decode points of channel %s", channelID)
	}
	return records, nil
}

// write replaces the file of channelID through a rename.
func (s *FsPointStore) write(channelID string, records []*runtime.PointRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	p := s.client.Path(s.key(channelID))
	tmp := p + ".tmp"
	if err = os.WriteFile(tmp, data, 0640); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (s *FsPointStore) LoadPoints(channelID string) ([]*runtime.PointRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(channelID)
}

func (s *FsPointStore) CreatePoint(channelID string, record *runtime.PointRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[record.Code]; ok {
		return 0, errDuplicateCode(record.Code)
	}
	records, err := s.read(channelID)
	if err != nil {
		return 0, err
	}
	saved := *record
	saved.ID = s.nextID
	saved.ChannelID = channelID
	if err = s.write(channelID, append(records, &saved)); err != nil {
		return 0, err
	}
	s.nextID++
	s.owners[record.Code] = channelID
	return saved.ID, nil
}

func (s *FsPointStore) UpdatePointMetadata(code string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	channelID, ok := s.owners[code]
	if !ok {
		return errPointNotFound(code)
	}
	records, err := s.read(channelID)
	if err != nil {
		return err
	}
	for i, r := range records {
		if r.Code != code {
			continue
		}
		merged, err := r.Merge(fields)
		if err != nil {
			return err
		}
		if merged.Code != code {
			if _, taken := s.owners[merged.Code]; taken {
				return errDuplicateCode(merged.Code)
			}
		}
		records[i] = merged
		if err = s.write(channelID, records); err != nil {
			return err
		}
		delete(s.owners, code)
		s.owners[merged.Code] = channelID
		return nil
	}
	return errPointNotFound(code)
}

func (s *FsPointStore) DeletePoint(code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	channelID, ok := s.owners[code]
	if !ok {
		return false, nil
	}
	records, err := s.read(channelID)
	if err != nil {
		return false, err
	}
	kept := records[:0]
	for _, r := range records {
		if r.Code != code {
			kept = append(kept, r)
		}
	}
	if err = s.write(channelID, kept); err != nil {
		return false, err
	}
	delete(s.owners, code)
	return true, nil
}

func (s *FsPointStore) SavePoints(channelID string, records []*runtime.PointRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkBatch(records, func(code string) bool {
		owner, ok := s.owners[code]
		return ok && owner != channelID
	}); err != nil {
		return err
	}
	old, err := s.read(channelID)
	if err != nil {
		return err
	}
	saved := make([]*runtime.PointRecord, 0, len(records))
	for _, r := range records {
		c := *r
		c.ID = s.nextID
		c.ChannelID = channelID
		s.nextID++
		saved = append(saved, &c)
	}
	if err = s.write(channelID, saved); err != nil {
		return err
	}
	for _, r := range old {
		delete(s.owners, r.Code)
	}
	for _, r := range saved {
		s.owners[r.Code] = channelID
	}
	return nil
}

func (s *FsPointStore) DeleteChannel(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.read(channelID)
	if err != nil {
		return err
	}
	for _, r := range records {
		delete(s.owners, r.Code)
	}
	_, err = s.client.Delete(s.key(channelID), "")
	return err
}

func (s *FsPointStore) Close() error {
	return nil
}
