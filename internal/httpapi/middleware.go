package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"

	logx "puasapush/pkg/logx"
)

func RequestLogging(log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		c.Next()
		fields := []logx.Field{
			logx.String("method", method),
			logx.String("path", path),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logx.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= 500 {
			log.Warn("request", fields...)
			return
		}
		log.Debug("request", fields...)
	}
}
