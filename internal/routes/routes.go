package routes

import (
	"github.com/gin-gonic/gin"

	"recipebox/internal/handlers"
	"recipebox/internal/middleware"
	"recipebox/internal/services"
)

func SetupRoutes(
	r *gin.Engine,
	authHandler *handlers.AuthHandler,
	verifyHandler *handlers.VerifyHandler,
	passwordHandler *handlers.PasswordHandler,
	authService services.AuthService,
	flows services.VerificationService,
) *gin.Engine {

	// ---- accounts
	r.POST("/register", authHandler.Register)
	r.POST("/login", authHandler.Login)
	r.POST("/logout", authHandler.Logout)
	session := r.Group("/session", middleware.RequireSession(authService))
	{
		session.GET("", authHandler.Session)
		session.GET("/attempts", verifyHandler.Attempts)
	}

	// ---- password reset
	password := r.Group("/password")
	{
		password.POST("/forgot", passwordHandler.Forgot)
		password.POST("/reset", passwordHandler.Reset)
	}

	// ---- code screens
	r.POST("/flows/verify-email", verifyHandler.StartEmail)
	r.POST("/flows/verify-reset", verifyHandler.StartReset)
	r.DELETE("/flows/:id", verifyHandler.Discard)

	flow := r.Group("/flows/:id", middleware.LoadFlow(flows))
	{
		flow.GET("", verifyHandler.Get)
		flow.GET("/events", verifyHandler.Events)
		flow.POST("/digit", verifyHandler.Digit)
		flow.POST("/backspace", verifyHandler.Backspace)
		flow.POST("/submit", verifyHandler.Submit)
		flow.POST("/resend", verifyHandler.Resend)
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	return r
}
