package controllers

import (
	"net/http"
	"strconv"

	"debatehub/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type NotificationController struct {
	notifications services.StoreNotifier
	log           logrus.FieldLogger
}

func NewNotificationController(notifications services.StoreNotifier, log logrus.FieldLogger) *NotificationController {
	return &NotificationController{notifications: notifications, log: log}
}

func (n *NotificationController) List(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	notes, err := n.notifications.List(c.Request.Context(), actor.UserID, limit)
	if err != nil {
		respondError(c, n.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notes})
}
