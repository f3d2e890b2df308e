package modbus

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"emssimulate/pkg/point"
	"emssimulate/pkg/pointmanager"
	"emssimulate/pkg/protocol"
	"emssimulate/pkg/runtime"
	"emssimulate/pkg/runtime/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPoint(t *testing.T, record *runtime.PointRecord) point.Point {
	t.Helper()
	p, err := point.New(record, constant.FamilyRegister)
	require.NoError(t, err)
	return p
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServerLocalReadWrite(t *testing.T) {
	pm := pointmanager.New()
	s := NewServer(constant.ModbusTcp, "local", pm, 0)

	m := newPoint(t, &runtime.PointRecord{Kind: constant.Measurement, Code: "M1", SlaveID: 1, Address: "100", DecodeCode: "0x42"})
	_, err := s.Read(context.Background(), m)
	assert.ErrorIs(t, err, constant.ErrHandlerNotInitialized)

	require.NoError(t, s.Initialize(map[string]interface{}{"slaves": []int{3}}))
	assert.Equal(t, protocol.Initialized, s.State())
	assert.Equal(t, []int{0, 1, 3}, s.Banks().Slaves())

	require.NoError(t, s.Write(context.Background(), m, 12.5))
	v, err := s.Read(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)

	bank, _ := s.Banks().Get(1)
	regs, err := bank.ReadRegisters(HoldingRegisters, 100, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x4148, 0x0000}, regs)

	// 寄存器中的遥信位
	st := newPoint(t, &runtime.PointRecord{Kind: constant.Status, Code: "S1", SlaveID: 1, Address: "200", FunctionCode: 3, BitOffset: 4})
	require.NoError(t, s.Write(context.Background(), st, 1))
	regs, err = bank.ReadRegisters(HoldingRegisters, 200, 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0010), regs[0])
	v, err = s.Read(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, float64(1), v)

	// 默认功能码: 遥控写线圈
	c := newPoint(t, &runtime.PointRecord{Kind: constant.Control, Code: "C1", SlaveID: 3, Address: "7"})
	require.NoError(t, s.Write(context.Background(), c, 5))
	bank3, _ := s.Banks().Get(3)
	bits, err := bank3.ReadBits(Coils, 7, 1)
	require.NoError(t, err)
	assert.True(t, bits[0])

	orphan := newPoint(t, &runtime.PointRecord{Kind: constant.Measurement, Code: "M9", SlaveID: 9, Address: "1"})
	_, err = s.Read(context.Background(), orphan)
	assert.ErrorIs(t, err, constant.ErrInvalidSlave)
	require.NoError(t, s.AddPoints([]point.Point{orphan}))
	_, err = s.Read(context.Background(), orphan)
	assert.NoError(t, err)

	require.NoError(t, s.AddSlave(20))
	assert.ErrorIs(t, s.AddSlave(20), constant.ErrDuplicateSlave)
}

func TestServerSeedsPointsOnInitialize(t *testing.T) {
	pm := pointmanager.New()
	m := newPoint(t, &runtime.PointRecord{Kind: constant.Setpoint, Code: "SP1", SlaveID: 1, Address: "0x10", DecodeCode: "0x20", Value: 42})
	require.NoError(t, pm.AddPoint(m))

	s := NewServer(constant.ModbusTcp, "seed", pm, 0)
	require.NoError(t, s.Initialize(nil))
	bank, _ := s.Banks().Get(1)
	regs, err := bank.ReadRegisters(HoldingRegisters, 16, 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(42), regs[0])
}

func TestServerOptions(t *testing.T) {
	o, err := decodeServerOptions(map[string]interface{}{"port": "1502", "idleTimeout": 5, "baudRate": "19200"})
	require.NoError(t, err)
	assert.Equal(t, 1502, o.Port)
	assert.Equal(t, 5*time.Second, o.IdleTimeout)
	assert.Equal(t, 19200, o.BaudRate)
	assert.Equal(t, "0.0.0.0", o.Host)
	assert.Equal(t, "0.0.0.0:1502", o.Address())

	_, err = decodeServerOptions(map[string]interface{}{"slaves": []int{300}})
	assert.Error(t, err)

	co, err := decodeClientOptions(map[string]interface{}{"timeout": "500ms"})
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, co.Timeout)
	assert.Equal(t, "127.0.0.1:502", co.Address())
}

func TestRtuOverTcpServer(t *testing.T) {
	port := freePort(t)
	pm := pointmanager.New()
	s := NewServer(constant.ModbusRtuOverTcp, "rtu-over-tcp", pm, 0)
	require.NoError(t, s.Initialize(map[string]interface{}{"host": "127.0.0.1", "port": port}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())
	assert.Equal(t, protocol.Running, s.State())

	m := newPoint(t, &runtime.PointRecord{Kind: constant.Measurement, Code: "M1", SlaveID: 1, Address: "0", DecodeCode: "0x20"})
	require.NoError(t, s.Write(context.Background(), m, 0x0102))

	conn, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
	require.NoError(t, err)
	defer conn.Close()

	// 请求分两段发送
	request := EncodeRTU(1, []byte{0x03, 0x00, 0x00, 0x00, 0x01})
	_, err = conn.Write(request[:3])
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = conn.Write(request[3:])
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	want := EncodeRTU(1, []byte{0x03, 0x02, 0x01, 0x02})
	resp := make([]byte, len(want))
	_, err = readFull(conn, resp)
	require.NoError(t, err)
	assert.Equal(t, want, resp)

	msgs := s.Messages(0)
	require.Len(t, msgs, 2)
	assert.Equal(t, request, msgs[0].Raw)
	assert.Equal(t, want, msgs[1].Raw)

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, protocol.Stopped, s.State())
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := conn.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func TestTcpServerWithClient(t *testing.T) {
	port := freePort(t)
	serverPoints := pointmanager.New()
	s := NewServer(constant.ModbusTcp, "slave", serverPoints, 0)
	require.NoError(t, s.Initialize(map[string]interface{}{"host": "127.0.0.1", "port": port}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	c := NewClient(constant.ModbusTcpClient, "master", pointmanager.New(), 0)
	require.NoError(t, c.Initialize(map[string]interface{}{"host": "127.0.0.1", "port": port, "timeout": 2}))
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop(context.Background())
	assert.True(t, c.Connected())
	assert.Equal(t, protocol.BlockingWrapped, c.Capability())

	sp := newPoint(t, &runtime.PointRecord{Kind: constant.Setpoint, Code: "SP1", SlaveID: 1, Address: "10", DecodeCode: "0x41"})
	require.NoError(t, c.Write(context.Background(), sp, -123456))

	v, err := s.Read(context.Background(), sp)
	require.NoError(t, err)
	assert.Equal(t, float64(-123456), v)

	ctl := newPoint(t, &runtime.PointRecord{Kind: constant.Control, Code: "C1", SlaveID: 1, Address: "3"})
	require.NoError(t, c.Write(context.Background(), ctl, 1))
	v, err = c.Read(context.Background(), ctl)
	require.NoError(t, err)
	assert.Equal(t, float64(1), v)

	in := newPoint(t, &runtime.PointRecord{Kind: constant.Measurement, Code: "M1", SlaveID: 1, Address: "4", FunctionCode: 4})
	assert.ErrorIs(t, c.Write(context.Background(), in, 1), constant.ErrNotWritable)

	assert.NotEmpty(t, c.Messages(0))
	assert.NotEmpty(t, s.Messages(0))
}
