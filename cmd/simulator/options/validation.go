package options

import (
	"fmt"
	"net/url"
	"strconv"

	"emssimulate/pkg/storage"
	"k8s.io/apimachinery/pkg/util/sets"
)

var brokerSchemes = sets.NewString("tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts")

func Validate(o *Options) []error {
	var errs []error
	if err := o.BaseOptions.ValidateAndApply(); err != nil {
		errs = append(errs, err)
	}
	if port, err := strconv.Atoi(o.Port); err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %q", o.Port))
	}
	if o.Wait < 0 {
		errs = append(errs, fmt.Errorf("graceful-timeout must not be negative"))
	}
	if (len(o.CertFile) == 0) != (len(o.KeyFile) == 0) {
		errs = append(errs, fmt.Errorf("cert-file and key-file must be set together"))
	}

	if len(o.Store.Path) == 0 {
		errs = append(errs, fmt.Errorf("store-path is required"))
	}
	if o.Store.Driver != storage.DriverFs && o.Store.Driver != storage.DriverSqlite {
		errs = append(errs, fmt.Errorf("unsupported point store %q", o.Store.Driver))
	}

	if len(o.Mqtt.Broker) > 0 {
		if u, err := url.Parse(o.Mqtt.Broker); err != nil || !brokerSchemes.Has(u.Scheme) || len(u.Host) == 0 {
			errs = append(errs, fmt.Errorf("invalid mqtt-broker %q", o.Mqtt.Broker))
		}
		if len(o.Mqtt.ClientID) == 0 {
			errs = append(errs, fmt.Errorf("mqtt-client-id is required with mqtt-broker"))
		}
	}
	if o.Mqtt.QoS < 0 || o.Mqtt.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt-qos must be 0, 1 or 2"))
	}

	if o.Channel.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll-interval must be positive"))
	}
	if o.Channel.BridgeWorkers <= 0 {
		errs = append(errs, fmt.Errorf("bridge-workers must be positive"))
	}
	if o.Channel.HandoffTimeout <= 0 {
		errs = append(errs, fmt.Errorf("handoff-timeout must be positive"))
	}
	if o.Channel.CaptureCapacity <= 0 {
		errs = append(errs, fmt.Errorf("capture-capacity must be positive"))
	}
	return errs
}
