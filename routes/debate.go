package routes

import (
	"debatehub/models"

	"github.com/gin-gonic/gin"
)

// SetupDebateRoutes registers the authenticated debate, definition, vote and
// notification endpoints.
func SetupDebateRoutes(router gin.IRouter, d *Deps) {
	debates := router.Group("/debates")
	{
		debates.POST("", d.Debates.CreateDebate)
		debates.GET("/:id", d.Debates.GetDebate)
		debates.GET("/:id/progress", d.Debates.GetProgress)
		debates.POST("/:id/join", d.Debates.JoinDebate)
		debates.POST("/:id/arguments", d.Debates.SubmitArgument)
		debates.POST("/:id/cancel", d.Debates.CancelDebate)
		debates.POST("/:id/definitions", d.Definitions.Propose)
	}

	definitions := router.Group("/definitions")
	{
		definitions.PATCH("/:id/status", d.Definitions.SetStatus)
		definitions.POST("/:id/supersede", d.Definitions.Supersede)
	}

	votes := router.Group("/votes")
	{
		votes.POST("/argument", d.Votes.Vote(models.VoteTargetArgument))
		votes.POST("/definition", d.Votes.Vote(models.VoteTargetDefinition))
		votes.GET("/:kind/:id/tally", d.Votes.Tally)
	}

	router.GET("/notifications", d.Notifications.List)

	admin := router.Group("/admin")
	admin.Use(d.Authz.RBACMiddleware("sweep", "run"))
	{
		admin.POST("/sweep", d.Cron.CheckTimeouts)
	}
}
