package capture

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

const DefaultCapacity = 100

type Direction byte

const (
	TX Direction = iota // 发送
	RX                  // 接收
)

var DirectionToString = map[Direction]string{
	TX: "TX",
	RX: "RX",
}

func (d Direction) String() string {
	return DirectionToString[d]
}

func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

type Message struct {
	Sequence    uint64    `json:"sequence"`
	Timestamp   time.Time `json:"timestamp"`
	Direction   Direction `json:"direction"`
	Raw         []byte    `json:"-"`
	Hex         string    `json:"hex"`
	Description string    `json:"description"`
}

// Capture bounded ring of raw frames. The oldest record is evicted when full and the
// sequence keeps counting across Clear.
type Capture struct {
	mu       sync.Mutex
	buf      []Message
	start    int
	size     int
	sequence uint64
}

func New(capacity int) *Capture {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Capture{buf: make([]Message, capacity)}
}

func (c *Capture) RecordTx(raw []byte, description string) {
	c.Record(TX, raw, description)
}

func (c *Capture) RecordRx(raw []byte, description string) {
	c.Record(RX, raw, description)
}

// Record never fails the caller, a panic while recording is logged and dropped.
func (c *Capture) Record(direction Direction, raw []byte, description string) {
	if c == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			klog.V(2).InfoS("Failed to record message", "err", r)
		}
	}()

	data := make([]byte, len(raw))
	copy(data, raw)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sequence++
	m := Message{
		Sequence:    c.sequence,
		Timestamp:   time.Now(),
		Direction:   direction,
		Raw:         data,
		Hex:         fmt.Sprintf("% X", data),
		Description: description,
	}
	capacity := len(c.buf)
	if c.size < capacity {
		c.buf[(c.start+c.size)%capacity] = m
		c.size++
		return
	}
	c.buf[c.start] = m
	c.start = (c.start + 1) % capacity
}

// Messages returns the most recent limit records in ascending sequence order,
// limit <= 0 returns everything retained.
func (c *Capture) Messages(limit int) []Message {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit <= 0 || limit > c.size {
		limit = c.size
	}
	ret := make([]Message, 0, limit)
	capacity := len(c.buf)
	for i := c.size - limit; i < c.size; i++ {
		ret = append(ret, c.buf[(c.start+i)%capacity])
	}
	return ret
}

func (c *Capture) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.buf {
		c.buf[i] = Message{}
	}
	c.start = 0
	c.size = 0
}

func (c *Capture) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *Capture) Capacity() int {
	return len(c.buf)
}
