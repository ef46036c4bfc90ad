package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relaychat/controller"
	"relaychat/model"
	"relaychat/platform"
	"relaychat/service"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

var logger = platform.Logger

type conversationLocker interface {
	Acquire(ctx context.Context, conversationID string) (func(), error)
}

type handlers struct {
	auth *controller.AuthController
	user *controller.UserController
	chat *controller.ChatController
}

func newRouter(cfg *platform.Config, h handlers, limiter *ipRateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware(cfg.CORSOrigin))
	r.Use(RequestIDMiddleware())
	r.Use(LogMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	{
		user := v1.Group("/user")
		user.POST("/register", RateLimitMiddleware(limiter), h.user.Register)
		user.POST("/login", RateLimitMiddleware(limiter), h.user.Login)
		user.GET("/me", h.auth.TokenValid, h.user.Me)

		//Refresh the token
		v1.POST("/token/refresh", h.auth.Refresh)

		v1.GET("/models", h.chat.Models)

		chats := v1.Group("/chats", h.auth.TokenValid)
		chats.GET("", h.chat.List)
		chats.POST("", h.chat.Create)
		chats.GET("/:id", h.chat.Get)
		chats.PATCH("/:id", h.chat.UpdateTitle)
		chats.DELETE("/:id", h.chat.Delete)
		chats.GET("/:id/messages", h.chat.Messages)
		chats.POST("/:id/messages", h.chat.SendMessage)
		chats.GET("/:id/export", h.chat.Export)
	}
	return r
}

func main() {
	fmt.Println("Server started...")

	//Load the .env file
	if err := godotenv.Load(".env"); err != nil {
		fmt.Println("failed to load the env file")
	}

	cfg, err := platform.LoadConfig()
	if err != nil {
		logger.Fatalf("invalid configuration: %s", err)
	}
	gin.SetMode(cfg.GinMode)

	hook, err := platform.InitAppLogger(cfg.LogDir, "relaychat")
	if err != nil {
		logger.Fatalf("failed to open log file: %s", err)
	}
	defer hook.Close()

	//init database
	db, err := platform.NewDB(cfg)
	if err != nil {
		logger.Fatalf("%s", err)
	}
	defer platform.CloseDB(db)
	if err := model.InstallDB(db); err != nil {
		logger.Fatalf("failed to migrate database: %s", err)
	}

	catalog, err := model.LoadCatalog(cfg.ModelsFile)
	if err != nil {
		logger.Fatalf("%s", err)
	}

	var locks conversationLocker = platform.NewMemoryLocker()
	if cfg.RedisURL != "" {
		client, err := platform.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Fatalf("%s", err)
		}
		defer client.Close()
		locks = platform.NewRedisLocker(client, 5*time.Minute)
		logger.Infof("conversation locks shared through redis")
	}

	store := model.NewStore(db)
	tokens := service.NewTokenService(cfg.AccessSecret, cfg.TokenTTL)
	titles := service.NewTitleSynthesizer(platform.NewTitleClient(cfg.LLM), cfg.LLM.TitleModel)
	relay := service.NewRelay(store, platform.NewCompletionClient(cfg.LLM), titles, locks, catalog)

	limiter := newIPRateLimiter(rate.Every(6*time.Second), 10)
	r := newRouter(cfg, handlers{
		auth: controller.NewAuthController(tokens),
		user: controller.NewUserController(service.NewUserService(store, tokens)),
		chat: controller.NewChatController(service.NewChatService(store), relay, catalog),
	}, limiter)

	c := cron.New()
	if cfg.BackfillSpec != "" {
		task := service.NewTitleBackfillTask(store, titles, locks, cfg.BackfillMinAge)
		if _, err := c.AddFunc(cfg.BackfillSpec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if _, err := task.Run(ctx); err != nil {
				logger.Warnf("[%s] TitleBackfillTask error, %s", "scheduled task", err)
			}
		}); err != nil {
			logger.Fatalf("invalid TITLE_BACKFILL_SCHEDULE %q: %s", cfg.BackfillSpec, err)
		}
	}
	c.AddFunc("@every 10m", func() {
		limiter.sweep(30 * time.Minute)
	})
	c.Start()
	defer c.Stop()

	// no WriteTimeout, replies are streamed for as long as the provider takes
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %s", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("graceful shutdown failed: %s", err)
	}
}
