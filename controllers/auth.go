package controllers

import (
	"net/http"

	"debatehub/services"
	"debatehub/structs"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AuthController struct {
	auth *services.AuthService
	log  logrus.FieldLogger
}

func NewAuthController(auth *services.AuthService, log logrus.FieldLogger) *AuthController {
	return &AuthController{auth: auth, log: log}
}

func (a *AuthController) SignUp(ctx *gin.Context) {
	var request structs.SignUpRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		badInput(ctx, err)
		return
	}

	result, err := a.auth.Signup(ctx.Request.Context(), &request)
	if err != nil {
		respondError(ctx, a.log, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"message": "Sign-up successful", "accessToken": result.AccessToken, "user": result.User})
}

func (a *AuthController) Login(ctx *gin.Context) {
	var request structs.LoginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "message": "Check email and password format"})
		return
	}

	result, err := a.auth.Login(ctx.Request.Context(), &request)
	if err != nil {
		respondError(ctx, a.log, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Sign-in successful", "accessToken": result.AccessToken, "user": result.User})
}

func (a *AuthController) ForgotPassword(ctx *gin.Context) {
	var request structs.ForgotPasswordRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		badInput(ctx, err)
		return
	}

	if err := a.auth.ForgotPassword(ctx.Request.Context(), &request); err != nil {
		respondError(ctx, a.log, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "If the address is registered, a reset link has been sent"})
}

func (a *AuthController) ResetPassword(ctx *gin.Context) {
	var request structs.ResetPasswordRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		badInput(ctx, err)
		return
	}

	if err := a.auth.ResetPassword(ctx.Request.Context(), &request); err != nil {
		respondError(ctx, a.log, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Password has been reset"})
}
