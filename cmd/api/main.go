package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"

	"github.com/woworkers/woworkers-api/internal/config"
	"github.com/woworkers/woworkers-api/internal/db"
	"github.com/woworkers/woworkers-api/internal/handlers"
	"github.com/woworkers/woworkers-api/internal/middleware"
	"github.com/woworkers/woworkers-api/internal/models"
	"github.com/woworkers/woworkers-api/internal/realtime"
	"github.com/woworkers/woworkers-api/internal/services/contracts"
	"github.com/woworkers/woworkers-api/internal/services/reputation"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Redis not reachable:", err)
	}

	hub := realtime.NewHub()
	go hub.Run()

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Job{},
		&models.Proposal{},
		&models.Contract{},
		&models.Review{},
		&models.Conversation{},
		&models.Message{},
	); err != nil {
		log.Fatal(err)
	}

	reputationSvc := reputation.NewService(gdb)
	contractsSvc := contracts.NewService(gdb, reputationSvc)

	authH := &handlers.AuthHandler{
		DB:        gdb,
		JWTSecret: cfg.JWTSecret,
		Expires:   cfg.JWTExpiresMin,
	}
	googleH := &handlers.GoogleOAuthHandler{
		DB:              gdb,
		JWTSecret:       cfg.JWTSecret,
		Expires:         cfg.JWTExpiresMin,
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: cfg.FrontendBaseURL,
	}
	jobH := handlers.NewJobHandler(gdb, contractsSvc)
	proposalH := handlers.NewProposalHandler(gdb, hub, contractsSvc)
	contractH := handlers.NewContractHandler(gdb, hub, rdb, contractsSvc)
	reviewH := handlers.NewReviewHandler(gdb, reputationSvc)
	profileH := handlers.NewProfileHandler(gdb)
	chatH := handlers.NewChatHandler(gdb, hub, rdb)
	dashH := handlers.NewDashboardHandler(gdb)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendBaseURL,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/auth/google/start", googleH.GoogleStart)
	api.Get("/auth/google/callback", googleH.GoogleCallback)

	api.Get("/jobs", jobH.ListPublic)
	api.Get("/jobs/categories", jobH.GetCategories)
	api.Get("/jobs/:id", jobH.GetJob)
	api.Get("/freelancers/:id", profileH.GetFreelancer)
	api.Get("/freelancers/:id/reviews", reviewH.ListForFreelancer)
	api.Get("/freelancers/:id/reviews/summary", reviewH.Summary)

	// protected (JWT from cookie)
	protected := api.Group("/",
		middleware.JWTFromCookie(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
	)

	protected.Get("/me", profileH.Me)
	protected.Patch("/me/profile", profileH.UpdateMe)
	protected.Get("/dashboard", dashH.Stats)

	// jobs, client side
	protected.Post("/jobs",
		middleware.RequireRoles("client"),
		jobH.CreateJob,
	)
	protected.Get("/client/jobs",
		middleware.RequireRoles("client"),
		jobH.MyJobs,
	)
	protected.Patch("/jobs/:id/cancel",
		middleware.RequireRoles("client"),
		jobH.CancelJob,
	)
	protected.Get("/jobs/:id/proposals",
		middleware.RequireRoles("client"),
		proposalH.ListForJob,
	)
	protected.Post("/jobs/:id/proposals/:proposalId/accept",
		middleware.RequireRoles("client"),
		proposalH.Accept,
	)

	// proposals, freelancer side
	protected.Post("/jobs/:id/proposals",
		middleware.RequireRoles("freelancer"),
		proposalH.SubmitProposal,
	)
	protected.Get("/freelancer/proposals",
		middleware.RequireRoles("freelancer"),
		proposalH.ListMine,
	)
	protected.Patch("/proposals/:id/withdraw",
		middleware.RequireRoles("freelancer"),
		proposalH.Withdraw,
	)
	protected.Patch("/proposals/:id/reject",
		middleware.RequireRoles("client"),
		proposalH.Reject,
	)

	// contracts
	protected.Get("/contracts", contractH.ListMine)
	protected.Get("/contracts/:id", contractH.Get)
	protected.Post("/contracts/:id/deliver",
		middleware.RequireRoles("freelancer"),
		contractH.Deliver,
	)
	protected.Post("/contracts/:id/revision",
		middleware.RequireRoles("client"),
		contractH.RequestRevision,
	)
	protected.Post("/contracts/:id/complete",
		middleware.RequireRoles("client"),
		contractH.Complete,
	)
	protected.Patch("/contracts/:id/cancel",
		middleware.RequireRoles("client"),
		contractH.Cancel,
	)

	// chat
	chat := protected.Group("/chat")
	chat.Post("/conversations", chatH.StartConversation)
	chat.Get("/conversations", chatH.GetConversations)
	chat.Get("/conversations/:id/messages", chatH.GetMessages)
	chat.Post("/conversations/:id/messages", chatH.SendMessage)
	chat.Patch("/conversations/:id/read", chatH.MarkAsRead)
	chat.Get("/unread", chatH.GetUnreadTotal)

	// websocket auth is via query param, not the cookie middleware
	app.Get("/ws/chat", websocket.New(chatH.WebSocketHandler))

	log.Fatal(app.Listen(":" + cfg.AppPort))
}
