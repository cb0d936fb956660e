package controllers

import (
	"net/http"

	"debatehub/models"
	"debatehub/services"
	"debatehub/structs"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type VoteController struct {
	votes *services.VoteService
	log   logrus.FieldLogger
}

func NewVoteController(votes *services.VoteService, log logrus.FieldLogger) *VoteController {
	return &VoteController{votes: votes, log: log}
}

// Vote handles POST /votes/<kind>
func (v *VoteController) Vote(kind models.VoteTargetKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := caller(c)
		if !ok {
			return
		}
		var req structs.VoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badInput(c, err)
			return
		}
		targetID, err := primitive.ObjectIDFromHex(req.TargetID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid targetId"})
			return
		}

		result, err := v.votes.Vote(c.Request.Context(), kind, targetID, *req.Support, actor.UserID)
		if err != nil {
			respondError(c, v.log, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (v *VoteController) Tally(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	tally, err := v.votes.Tally(c.Request.Context(), models.VoteTargetKind(c.Param("kind")), id)
	if err != nil {
		respondError(c, v.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"support": tally.Support, "oppose": tally.Oppose, "net": tally.Net()})
}
