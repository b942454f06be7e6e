package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/moodbloom/metrics"
)

// Metrics records request count and latency labelled by the matched route template.
func Metrics() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		done := metrics.RequestStarted()
		ctx.Next()
		done(ctx.Request.Method, ctx.FullPath(), ctx.Writer.Status())
	}
}
