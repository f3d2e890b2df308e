package generic

import (
	"time"

	"emssimulate/pkg/metrics"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
)

func Default() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(logger(), metrics.Middleware(), gin.Recovery())
	return engine
}

func logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Start timer
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		// Process request
		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		klog.V(4).InfoS("Received HTTP request",
			"verb", c.Request.Method,
			"URI", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
