package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "emssimulate"

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	registry = prometheus.NewRegistry()

	PointIO = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "point_io_total",
		Help:      "Point reads and writes by channel, operation and result.",
	}, []string{"channel", "op", "result"})

	PollDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "poll_duration_seconds",
		Help:      "Duration of one poll pass over every enabled point of a channel.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"channel"})

	ChannelRunning = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "channel_running",
		Help:      "1 while the protocol handler of a channel is running.",
	}, []string{"channel", "protocol"})

	Publish = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mqtt_publish_total",
		Help:      "MQTT publishes of polled values by result.",
	}, []string{"result"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Operator API requests by method, route and status.",
	}, []string{"method", "route", "status"})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		PointIO,
		PollDuration,
		ChannelRunning,
		Publish,
		HTTPRequests,
	)
}

func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

// ObservePoll records the duration of a poll pass started at start.
func ObservePoll(channel string, start time.Time) {
	PollDuration.WithLabelValues(channel).Observe(time.Since(start).Seconds())
}

func SetRunning(channel, protocol string, running bool) {
	v := 0.0
	if running {
		v = 1
	}
	ChannelRunning.WithLabelValues(channel, protocol).Set(v)
}

// Forget drops every series of a deleted channel.
func Forget(channel string) {
	PointIO.DeletePartialMatch(prometheus.Labels{"channel": channel})
	PollDuration.DeletePartialMatch(prometheus.Labels{"channel": channel})
	ChannelRunning.DeletePartialMatch(prometheus.Labels{"channel": channel})
}

func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// Middleware counts requests by their route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if len(route) == 0 {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

func InstallHandler(engine *gin.Engine) {
	engine.GET("/metrics", gin.WrapH(Handler()))
}
