package modbus

import (
	"sync"

	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/sets"
)

const TableSize = 65536

type Table byte

const (
	Coils            Table = iota // 线圈 01 05 15
	DiscreteInputs                // 离散输入 02
	HoldingRegisters              // 保持寄存器 03 06 16
	InputRegisters                // 输入寄存器 04
)

var TableToString = map[Table]string{
	Coils:            "coils",
	DiscreteInputs:   "discreteInputs",
	HoldingRegisters: "holdingRegisters",
	InputRegisters:   "inputRegisters",
}

func (t Table) String() string {
	return TableToString[t]
}

// Bits reports whether the table holds single bits.
func (t Table) Bits() bool {
	return t == Coils || t == DiscreteInputs
}

var ErrIllegalAddress = errors.New("illegal data address")

// TableOf maps a function code onto the table it addresses, 10 is treated as 6.
func TableOf(functionCode uint8) (Table, error) {
	switch functionCode {
	case 1, 5, 15:
		return Coils, nil
	case 2:
		return DiscreteInputs, nil
	case 3, 6, 10, 16:
		return HoldingRegisters, nil
	case 4:
		return InputRegisters, nil
	default:
		return 0, errors.Wrapf(constant.ErrProtocolViolation, "function code %d", functionCode)
	}
}

// Bank register image of one slave.
type Bank struct {
	mu        sync.RWMutex
	bits      [2][]bool
	registers [2][]uint16
}

func NewBank() *Bank {
	return &Bank{
		bits:      [2][]bool{make([]bool, TableSize), make([]bool, TableSize)},
		registers: [2][]uint16{make([]uint16, TableSize), make([]uint16, TableSize)},
	}
}

func checkRange(address, quantity int) error {
	if quantity <= 0 || address < 0 || address+quantity > TableSize {
		return errors.Wrapf(ErrIllegalAddress, "address %d quantity %d", address, quantity)
	}
	return nil
}

func (b *Bank) ReadBits(t Table, address, quantity int) ([]bool, error) {
	if !t.Bits() {
		return nil, errors.Errorf("%s is not a bit table", t)
	}
	if err := checkRange(address, quantity); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	ret := make([]bool, quantity)
	copy(ret, b.bits[t][address:address+quantity])
	return ret, nil
}

func (b *Bank) WriteBits(t Table, address int, values []bool) error {
	if !t.Bits() {
		return errors.Errorf("%s is not a bit table", t)
	}
	if err := checkRange(address, len(values)); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.bits[t][address:], values)
	return nil
}

func (b *Bank) ReadRegisters(t Table, address, quantity int) ([]uint16, error) {
	if t.Bits() {
		return nil, errors.Errorf("%s is not a register table", t)
	}
	if err := checkRange(address, quantity); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	ret := make([]uint16, quantity)
	copy(ret, b.registers[t-HoldingRegisters][address:address+quantity])
	return ret, nil
}

func (b *Bank) WriteRegisters(t Table, address int, values []uint16) error {
	if t.Bits() {
		return errors.Errorf("%s is not a register table", t)
	}
	if err := checkRange(address, len(values)); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.registers[t-HoldingRegisters][address:], values)
	return nil
}

// UpdateRegister read-modify-write of a single register under the bank lock.
func (b *Bank) UpdateRegister(t Table, address int, update func(uint16) uint16) error {
	if t.Bits() {
		return errors.Errorf("%s is not a register table", t)
	}
	if err := checkRange(address, 1); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	regs := b.registers[t-HoldingRegisters]
	regs[address] = update(regs[address])
	return nil
}

// Banks register images keyed by slave. Slaves 0 and 1 always exist.
type Banks struct {
	mu     sync.RWMutex
	slaves map[int]*Bank
}

func NewBanks(slaves ...int) *Banks {
	bs := &Banks{slaves: make(map[int]*Bank)}
	for _, s := range sets.List(sets.New[int](append([]int{0, 1}, slaves...)...)) {
		bs.slaves[s] = NewBank()
	}
	return bs
}

func (bs *Banks) Get(slave int) (*Bank, bool) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	b, ok := bs.slaves[slave]
	return b, ok
}

// Add creates the bank of slave, 1..255.
func (bs *Banks) Add(slave int) error {
	if slave < 1 || slave > 255 {
		return errors.Wrapf(constant.ErrInvalidSlave, "slave %d", slave)
	}
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if _, ok := bs.slaves[slave]; ok {
		return errors.Wrapf(constant.ErrDuplicateSlave, "slave %d", slave)
	}
	bs.slaves[slave] = NewBank()
	return nil
}

// Ensure creates the bank of slave when missing.
func (bs *Banks) Ensure(slave int) *Bank {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	b, ok := bs.slaves[slave]
	if !ok {
		b = NewBank()
		bs.slaves[slave] = b
	}
	return b
}

func (bs *Banks) Slaves() []int {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	s := sets.New[int]()
	for k := range bs.slaves {
		s.Insert(k)
	}
	return sets.List(s)
}
