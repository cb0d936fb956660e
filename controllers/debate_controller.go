package controllers

import (
	"net/http"

	"debatehub/services"
	"debatehub/structs"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type DebateController struct {
	debates   *services.DebateService
	lifecycle *services.LifecycleService
	log       logrus.FieldLogger
}

func NewDebateController(debates *services.DebateService, lifecycle *services.LifecycleService, log logrus.FieldLogger) *DebateController {
	return &DebateController{debates: debates, lifecycle: lifecycle, log: log}
}

func (d *DebateController) CreateDebate(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	var req structs.CreateDebateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, err)
		return
	}

	detail, err := d.debates.CreateDebate(c.Request.Context(), actor.UserID, &req)
	if err != nil {
		respondError(c, d.log, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (d *DebateController) GetDebate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	detail, err := d.debates.GetDebate(c.Request.Context(), id)
	if err != nil {
		respondError(c, d.log, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (d *DebateController) GetProgress(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	progress, err := d.lifecycle.ComputeProgress(c.Request.Context(), id)
	if err != nil {
		respondError(c, d.log, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (d *DebateController) JoinDebate(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	participant, err := d.debates.JoinDebate(c.Request.Context(), id, actor.UserID)
	if err != nil {
		respondError(c, d.log, err)
		return
	}
	c.JSON(http.StatusCreated, participant)
}

func (d *DebateController) SubmitArgument(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req structs.SubmitArgumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, err)
		return
	}

	argument, err := d.debates.SubmitArgument(c.Request.Context(), id, actor.UserID, &req)
	if err != nil {
		respondError(c, d.log, err)
		return
	}
	c.JSON(http.StatusCreated, argument)
}

func (d *DebateController) CancelDebate(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	debate, err := d.debates.CancelDebate(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, d.log, err)
		return
	}
	c.JSON(http.StatusOK, debate)
}
