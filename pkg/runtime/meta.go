package runtime

import (
	"fmt"
	"net/url"
	"time"
)

var (
	ErrNotObject = fmt.Errorf("object does not implement the Object interfaces")
)

type Object interface {
	GetName() string
	SetName(string)
	GetID() string
	SetID(string)
	GetVersion() string
	SetVersion(string)
	GetModTime() time.Time
	SetModTime(time.Time)
}

type ObjectMetaAccessor interface {
	GetObjectMeta() Object
}

type ObjectMeta struct {
	Name    string    `json:"name"`
	ID      string    `json:"id"`
	Version string    `json:"eTag"`
	ModTime time.Time `json:"modTime"`
}

var _ Object = (*ObjectMeta)(nil)

func (m *ObjectMeta) GetObjectMeta() Object  { return m }
func (m *ObjectMeta) GetName() string        { return m.Name }
func (m *ObjectMeta) SetName(name string)    { m.Name = name }
func (m *ObjectMeta) GetID() string          { return m.ID }
func (m *ObjectMeta) SetID(id string)        { m.ID = id }
func (m *ObjectMeta) GetVersion() string     { return m.Version }
func (m *ObjectMeta) SetVersion(v string)    { m.Version = v }
func (m *ObjectMeta) GetModTime() time.Time  { return m.ModTime }
func (m *ObjectMeta) SetModTime(t time.Time) { m.ModTime = t }

// Accessor takes an arbitrary object pointer and returns meta.Interface.
func Accessor(obj interface{}) (Object, error) {
	switch t := obj.(type) {
	case Object:
		return t, nil
	case ObjectMetaAccessor:
		if m := t.GetObjectMeta(); m != nil {
			return m, nil
		}
		return nil, ErrNotObject
	default:
		return nil, ErrNotObject
	}
}

type ListOptions struct {
	Filter map[string]interface{}
	Query  url.Values
}
