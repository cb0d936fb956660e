package controllers

import (
	"net/http"

	"debatehub/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type CronController struct {
	lifecycle *services.LifecycleService
	log       logrus.FieldLogger
}

func NewCronController(lifecycle *services.LifecycleService, log logrus.FieldLogger) *CronController {
	return &CronController{lifecycle: lifecycle, log: log}
}

// CheckTimeouts runs one timeout sweep and reports what it did
func (cc *CronController) CheckTimeouts(c *gin.Context) {
	report, err := cc.lifecycle.SweepTimeouts(c.Request.Context())
	if err != nil {
		respondError(c, cc.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}
