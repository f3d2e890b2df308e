package modbus

import (
	"encoding/hex"
	"log"
	"regexp"
	"strings"

	"emssimulate/pkg/capture"
	"k8s.io/klog/v2"
)

var frameLine = regexp.MustCompile(`modbus: (sending|received) ([0-9a-fA-F ]+)`)

// logTap receives the goburrow/modbus transport log and records the hex frames it
// prints into a capture.
type logTap struct {
	handler string
	capture *capture.Capture
}

func newLogger(handler string, c *capture.Capture) *log.Logger {
	return log.New(&logTap{handler: handler, capture: c}, "", 0)
}

func (t *logTap) Write(p []byte) (int, error) {
	line := string(p)
	m := frameLine.FindStringSubmatch(line)
	if m == nil {
		klog.V(5).InfoS("Modbus transport", "handler", t.handler, "message", strings.TrimSpace(line))
		return len(p), nil
	}
	raw, err := hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(m[2]), " ", ""))
	if err != nil {
		klog.V(5).InfoS("Failed to parse modbus frame log", "handler", t.handler, "line", line, "error", err)
		return len(p), nil
	}
	if m[1] == "sending" {
		t.capture.RecordTx(raw, "request")
	} else {
		t.capture.RecordRx(raw, "response")
	}
	return len(p), nil
}
