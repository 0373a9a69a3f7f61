package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/harrison-roh/crop-disease-classification/cropapp/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// NewRouter api 라우팅
func NewRouter(a *APIs) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(), gin.Recovery())

	r.GET("/", a.Health)
	r.POST("/predict", a.Predict)
	r.POST("/register", a.Register)
	r.POST("/login", a.Login)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// RequestLogger 요청마다 request id를 부여하고 처리 결과를 로그로 남김
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)

		t0 := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := logging.Info()
		if status >= 500 {
			ev = logging.Error()
		} else if status >= 400 {
			ev = logging.Warn()
		}

		ev.Str(requestIDKey, id).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(t0)).
			Str("client_ip", c.ClientIP()).
			Msg("Request")
	}
}

// RequestID 요청에 부여된 id
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
