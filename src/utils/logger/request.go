package logger

import (
	"github.com/mysomeid/sponsor/src/utils/common"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger of a REST request, tagged with its id
func LOG(c *gin.Context) *logrus.Entry {
	return NewSublogger("rest").WithField("request_id", common.GetRequestId(c.Request.Context()))
}

// Aborts the request with the status and returns the logger
func LOGE(c *gin.Context, err error, status int) *logrus.Entry {
	body := gin.H{"status": status}
	if err != nil {
		body["error"] = err.Error()
	}
	c.AbortWithStatusJSON(status, body)

	entry := LOG(c).WithField("status", status)
	if err != nil {
		entry = entry.WithError(err)
	}
	return entry
}
