package iec104

import (
	"fmt"
	"strings"

	"emssimulate/pkg/capture"
	"github.com/thinkgos/go-iecp5/clog"
	"k8s.io/klog/v2"
)

var _ clog.LogProvider = (*logTap)(nil)

// logTap routes the go-iecp5 log onto klog and records the raw APDUs it prints.
type logTap struct {
	handler string
	capture *capture.Capture
}

func newLogTap(handler string, c *capture.Capture) *logTap {
	return &logTap{handler: handler, capture: c}
}

func (t *logTap) Critical(format string, v ...interface{}) {
	klog.ErrorS(nil, fmt.Sprintf(format, v...), "handler", t.handler)
}

func (t *logTap) Error(format string, v ...interface{}) {
	klog.V(2).InfoS(fmt.Sprintf(format, v...), "handler", t.handler)
}

func (t *logTap) Warn(format string, v ...interface{}) {
	klog.V(2).InfoS(fmt.Sprintf(format, v...), "handler", t.handler)
}

func (t *logTap) Debug(format string, v ...interface{}) {
	if len(v) > 0 {
		if raw, ok := v[0].([]byte); ok {
			switch {
			case strings.HasPrefix(format, "TX Raw"):
				t.capture.RecordTx(raw, "apdu")
				return
			case strings.HasPrefix(format, "RX Raw"):
				t.capture.RecordRx(raw, "apdu")
				return
			}
		}
	}
	klog.V(5).InfoS(fmt.Sprintf(format, v...), "handler", t.handler)
}
