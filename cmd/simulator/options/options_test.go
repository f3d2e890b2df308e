package options

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"emssimulate/pkg/generic"
	"emssimulate/pkg/storage"
	"emssimulate/pkg/web"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	o := NewDefaultOptions()
	assert.Empty(t, Validate(o))

	o = NewDefaultOptions()
	o.Port = "70000"
	o.Store.Driver = "mysql"
	o.Mqtt.Broker = "127.0.0.1:1883"
	o.Mqtt.QoS = 3
	o.CertFile = "server.crt"
	o.Channel.PollInterval = 0
	assert.Len(t, Validate(o), 6)

	o = NewDefaultOptions()
	o.Mqtt.Broker = "tcp://127.0.0.1:1883"
	assert.Empty(t, Validate(o))
}

func TestAddFlags(t *testing.T) {
	o := NewDefaultOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"-P", "8080", "--point-store", "sqlite", "--poll-interval", "250ms", "--mqtt-qos", "0"}))
	assert.Equal(t, "8080", o.Port)
	assert.Equal(t, storage.DriverSqlite, o.Store.Driver)
	assert.Equal(t, "250ms", o.Channel.PollInterval.String())
	assert.Equal(t, 0, o.Mqtt.QoS)
}

func TestConfig(t *testing.T) {
	o := NewDefaultOptions()
	o.Store.Path = t.TempDir()
	c, err := o.Config(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.ChannelMgr.Shutdown(context.Background()) })
	assert.NotEmpty(t, c.StationMgr.GetStationMeta().GetID())

	server, err := web.NewServer(generic.Default(), o.Port, c)
	require.NoError(t, err)
	for _, path := range []string{"/api/v1/station", "/api/v1/channels", "/metrics"} {
		w := httptest.NewRecorder()
		server.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
