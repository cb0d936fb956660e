package controllers

import (
	"net/http"

	"debatehub/services"
	"debatehub/structs"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type DefinitionController struct {
	definitions *services.DefinitionService
	log         logrus.FieldLogger
}

func NewDefinitionController(definitions *services.DefinitionService, log logrus.FieldLogger) *DefinitionController {
	return &DefinitionController{definitions: definitions, log: log}
}

func (d *DefinitionController) Propose(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	debateID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req structs.ProposeDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, err)
		return
	}

	detail, err := d.definitions.ProposeDefinition(c.Request.Context(), debateID, actor.UserID, &req)
	if err != nil {
		respondError(c, d.log, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (d *DefinitionController) SetStatus(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req structs.DefinitionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, err)
		return
	}

	def, err := d.definitions.SetDefinitionStatus(c.Request.Context(), id, actor, &req)
	if err != nil {
		respondError(c, d.log, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

func (d *DefinitionController) Supersede(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req structs.ProposeDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, err)
		return
	}

	detail, err := d.definitions.SupersedeDefinition(c.Request.Context(), id, actor, &req)
	if err != nil {
		respondError(c, d.log, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}
