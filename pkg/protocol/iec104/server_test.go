package iec104

import (
	"context"
	"net"
	"testing"
	"time"

	"emssimulate/pkg/point"
	"emssimulate/pkg/pointmanager"
	"emssimulate/pkg/protocol"
	"emssimulate/pkg/runtime"
	"emssimulate/pkg/runtime/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkgos/go-iecp5/asdu"
	"k8s.io/apimachinery/pkg/util/wait"
)

type fakeConn struct {
	sent []*asdu.ASDU
}

func (f *fakeConn) Params() *asdu.Params     { return asdu.ParamsWide }
func (f *fakeConn) Send(a *asdu.ASDU) error  { f.sent = append(f.sent, a); return nil }
func (f *fakeConn) UnderlyingConn() net.Conn { return nil }
func (f *fakeConn) last() *asdu.ASDU         { return f.sent[len(f.sent)-1] }
func (f *fakeConn) reset()                   { f.sent = nil }
func (f *fakeConn) causes() []asdu.Cause {
	causes := make([]asdu.Cause, 0, len(f.sent))
	for _, a := range f.sent {
		causes = append(causes, a.Coa.Cause)
	}
	return causes
}

// incoming decodes the last ASDU built on f as a station would receive it.
func incoming(t *testing.T, f *fakeConn) *asdu.ASDU {
	t.Helper()
	raw, err := f.last().MarshalBinary()
	require.NoError(t, err)
	a := asdu.NewEmptyASDU(asdu.ParamsWide)
	require.NoError(t, a.UnmarshalBinary(raw))
	f.reset()
	return a
}

func float(v float64) *float64 { return &v }

func newStation(t *testing.T) (*Server, *pointmanager.PointManager) {
	t.Helper()
	pm := pointmanager.New()
	require.NoError(t, pm.AddPoints([]point.Point{
		newPoint(t, &runtime.PointRecord{Kind: constant.Measurement, Code: "M1", Address: "16385", Scale: float(0.1), Value: 123}),
		newPoint(t, &runtime.PointRecord{Kind: constant.Status, Code: "S1", Address: "1"}),
		newPoint(t, &runtime.PointRecord{Kind: constant.Control, Code: "C1", Address: "24577", RelatedStatus: "S1"}),
		newPoint(t, &runtime.PointRecord{Kind: constant.Setpoint, Code: "SP1", Address: "25089", Scale: float(0.1), MinLimit: 0, MaxLimit: 100}),
	}))
	s := NewServer("station", pm, 0)
	require.NoError(t, s.Initialize(map[string]interface{}{"reportInterval": 0}))
	return s, pm
}

func TestServerInterrogation(t *testing.T) {
	s, _ := newStation(t)
	h := &serverHandler{s: s}
	conn := &fakeConn{}

	require.NoError(t, asdu.InterrogationCmd(conn, asdu.CauseOfTransmission{Cause: asdu.Activation}, 1, asdu.QOIStation))
	req := incoming(t, conn)
	require.NoError(t, h.InterrogationHandler(conn, req, asdu.QOIStation))

	require.Len(t, conn.sent, 4)
	assert.Equal(t, []asdu.Cause{asdu.ActivationCon, asdu.InterrogatedByStation, asdu.InterrogatedByStation, asdu.ActivationTerm}, conn.causes())
	assert.Equal(t, asdu.M_SP_NA_1, conn.sent[1].Identifier.Type)
	assert.Equal(t, asdu.M_ME_NC_1, conn.sent[2].Identifier.Type)

	// 公共地址不符
	require.NoError(t, asdu.InterrogationCmd(conn, asdu.CauseOfTransmission{Cause: asdu.Activation}, 9, asdu.QOIStation))
	req = incoming(t, conn)
	require.NoError(t, h.InterrogationHandler(conn, req, asdu.QOIStation))
	require.Len(t, conn.sent, 1)
	assert.True(t, conn.sent[0].Coa.IsNegative)
	assert.Equal(t, asdu.UnknownCA, conn.sent[0].Coa.Cause)
}

func TestServerSingleCommandDrivesStatus(t *testing.T) {
	s, pm := newStation(t)
	h := &serverHandler{s: s}
	conn := &fakeConn{}

	require.NoError(t, asdu.SingleCmd(conn, asdu.C_SC_NA_1, asdu.CauseOfTransmission{Cause: asdu.Activation}, 1,
		asdu.SingleCommandInfo{Ioa: 24577, Value: true}))
	require.NoError(t, h.ASDUHandler(conn, incoming(t, conn)))
	assert.Equal(t, []asdu.Cause{asdu.ActivationCon, asdu.ActivationTerm}, conn.causes())
	assert.False(t, conn.sent[0].Coa.IsNegative)

	ctl, _ := pm.GetByCode("C1")
	assert.Equal(t, float64(1), ctl.Base().RawValue())
	st, _ := pm.GetByCode("S1")
	v, err := s.Read(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, float64(1), v)

	// 未知信息体地址
	conn.reset()
	require.NoError(t, asdu.SingleCmd(conn, asdu.C_SC_NA_1, asdu.CauseOfTransmission{Cause: asdu.Activation}, 1,
		asdu.SingleCommandInfo{Ioa: 999, Value: true}))
	require.NoError(t, h.ASDUHandler(conn, incoming(t, conn)))
	require.Len(t, conn.sent, 1)
	assert.True(t, conn.sent[0].Coa.IsNegative)
	assert.Equal(t, asdu.UnknownIOA, conn.sent[0].Coa.Cause)
}

func TestServerSetpointLimits(t *testing.T) {
	s, pm := newStation(t)
	h := &serverHandler{s: s}
	conn := &fakeConn{}

	require.NoError(t, asdu.SetpointCmdFloat(conn, asdu.C_SE_NC_1, asdu.CauseOfTransmission{Cause: asdu.Activation}, 1,
		asdu.SetpointCommandFloatInfo{Ioa: 25089, Value: 50}))
	require.NoError(t, h.ASDUHandler(conn, incoming(t, conn)))
	assert.Equal(t, []asdu.Cause{asdu.ActivationCon, asdu.ActivationTerm}, conn.causes())
	sp, _ := pm.GetByCode("SP1")
	assert.Equal(t, float64(500), sp.Base().RawValue())

	conn.reset()
	require.NoError(t, asdu.SetpointCmdFloat(conn, asdu.C_SE_NC_1, asdu.CauseOfTransmission{Cause: asdu.Activation}, 1,
		asdu.SetpointCommandFloatInfo{Ioa: 25089, Value: 150}))
	require.NoError(t, h.ASDUHandler(conn, incoming(t, conn)))
	require.Len(t, conn.sent, 1)
	assert.True(t, conn.sent[0].Coa.IsNegative)
	assert.Equal(t, float64(500), sp.Base().RawValue())
}

func TestServerLocalIO(t *testing.T) {
	s, pm := newStation(t)
	m, _ := pm.GetByCode("M1")
	v, err := s.Read(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, float64(123), v)

	require.NoError(t, s.Write(context.Background(), m, 456))
	v, err = s.Read(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, float64(456), v)

	other := newPoint(t, &runtime.PointRecord{Kind: constant.Measurement, Code: "M9", Address: "99"})
	_, err = s.Read(context.Background(), other)
	assert.ErrorIs(t, err, constant.ErrPointNotFound)
	require.NoError(t, s.AddPoints([]point.Point{other}))
	_, err = s.Read(context.Background(), other)
	assert.NoError(t, err)
	assert.True(t, s.RebuildOnMutation())
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServerAndClient(t *testing.T) {
	port := freePort(t)
	s, serverPoints := newStation(t)
	require.NoError(t, s.Initialize(map[string]interface{}{"host": "127.0.0.1", "port": port, "reportInterval": 0}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	extra := newPoint(t, &runtime.PointRecord{Kind: constant.Measurement, Code: "M9", Address: "99"})
	assert.ErrorIs(t, s.AddPoints([]point.Point{extra}), constant.ErrTopologyFrozen)

	clientPoints := pointmanager.New()
	require.NoError(t, clientPoints.AddPoints([]point.Point{
		newPoint(t, &runtime.PointRecord{Kind: constant.Measurement, Code: "M1", Address: "16385", Scale: float(0.1)}),
		newPoint(t, &runtime.PointRecord{Kind: constant.Control, Code: "C1", Address: "24577"}),
	}))
	c := NewClient("master", clientPoints, 0)
	require.NoError(t, c.Initialize(map[string]interface{}{"port": port}))
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop(context.Background())
	assert.True(t, c.Connected())

	m, _ := clientPoints.GetByCode("M1")
	err := wait.PollImmediate(50*time.Millisecond, 5*time.Second, func() (bool, error) {
		v, err := c.Read(context.Background(), m)
		return err == nil && v == 123, nil
	})
	require.NoError(t, err, "interrogation never delivered M1")

	assert.ErrorIs(t, c.Write(context.Background(), m, 1), constant.ErrNotWritable)

	ctl, _ := clientPoints.GetByCode("C1")
	require.NoError(t, c.Write(context.Background(), ctl, 1))
	serverCtl, _ := serverPoints.GetByCode("C1")
	err = wait.PollImmediate(50*time.Millisecond, 5*time.Second, func() (bool, error) {
		return serverCtl.Base().RawValue() == 1, nil
	})
	require.NoError(t, err, "command never reached the station")

	assert.NotEmpty(t, c.Messages(0))
	assert.NotEmpty(t, s.Messages(0))

	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, protocol.Stopped, c.State())
}
