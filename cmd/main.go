package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/tdhoang/examgate/config"
	"github.com/tdhoang/examgate/database"
	_ "github.com/tdhoang/examgate/docs" // Swagger docs
	"github.com/tdhoang/examgate/internal/auth"
	adminctrl "github.com/tdhoang/examgate/internal/controller/admin"
	userctrl "github.com/tdhoang/examgate/internal/controller/user"
	"github.com/tdhoang/examgate/internal/logger"
	"github.com/tdhoang/examgate/internal/model"
	"github.com/tdhoang/examgate/internal/repository"
	"github.com/tdhoang/examgate/internal/service"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title ExamGate API
// @version 1.0
// @description Timed multiple-choice exam service with server-enforced attempt timing and deterministic scoring.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
func main() {
	logger.Init()

	app := fx.New(
		// Core application components
		fx.Provide(
			config.NewConfig,
			database.NewDatabase, // *gorm.DB
			NewGinEngine,         // *gin.Engine
			auth.NewAuthorityChecker,
		),

		// Repositories layer
		fx.Provide(
			repository.NewExamRepository,
			repository.NewQuestionRepository,
			repository.NewChoiceRepository,
			repository.NewAttemptRepository,
			repository.NewAttemptAnswerRepository,
		),

		// Services layer
		fx.Provide(
			service.NewSystemClock,
			service.NewScoringService,
			service.NewExamService,
			service.NewAttemptService,
		),

		// API controllers layer
		fx.Provide(
			adminctrl.NewAdminExamController,
			userctrl.NewAttemptController,
		),

		fx.Invoke(RegisterRoutesAndStartServer),
		fx.Invoke(MigrateDB),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
}

func NewGinEngine() *gin.Engine {
	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Swagger UI at /swagger/index.html
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// RegisterRoutesAndStartServer configures API routes and manages the server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	adminExamCtrl *adminctrl.AdminExamController,
	attemptCtrl *userctrl.AttemptController,
) {
	adminAPIGroup := router.Group("/api/v1/admin")
	{
		examsAdminGroup := adminAPIGroup.Group("/exams")
		examsAdminGroup.POST("", adminExamCtrl.CreateExam)
		examsAdminGroup.PUT("/:exam_id", adminExamCtrl.UpdateExam)
		examsAdminGroup.DELETE("/:exam_id", adminExamCtrl.DeleteExam)
		examsAdminGroup.POST("/:exam_id/questions", adminExamCtrl.AddQuestion)
	}

	userAPIGroup := router.Group("/api/v1")
	{
		userAPIGroup.GET("/exams", attemptCtrl.ListExams)
		userAPIGroup.GET("/exams/:exam_id", attemptCtrl.GetExam)
		userAPIGroup.GET("/exams/:exam_id/questions", attemptCtrl.ListQuestions)

		userAPIGroup.POST("/exams/:exam_id/attempts", attemptCtrl.StartAttempt)
		userAPIGroup.GET("/exams/:exam_id/attempts", attemptCtrl.ListAttempts)
		userAPIGroup.GET("/exams/:exam_id/attempts/eligibility", attemptCtrl.Eligibility)

		userAPIGroup.GET("/attempts/:attempt_id", attemptCtrl.GetAttempt)
		userAPIGroup.GET("/attempts/:attempt_id/paper", attemptCtrl.GetPaper)
		userAPIGroup.PUT("/attempts/:attempt_id/answers", attemptCtrl.SaveAnswers)
		userAPIGroup.POST("/attempts/:attempt_id/submit", attemptCtrl.Submit)
		userAPIGroup.GET("/attempts/:attempt_id/report", attemptCtrl.Report)

		userAPIGroup.GET("/me", attemptCtrl.Me)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("ExamGate API server starting on port %s", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

func MigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.Exam{},
		&model.Question{},
		&model.Choice{},
		&model.Attempt{},
		&model.AttemptAnswer{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}

	// One active attempt per (exam, user); a partial index is not expressible
	// through gorm tags.
	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_one_active
		 ON attempts (exam_id, user_id)
		 WHERE status = 'in_progress' AND deleted_at IS NULL`,
	).Error; err != nil {
		log.Error().Err(err).Msg("Failed to create one-active-attempt index")
		return err
	}

	log.Info().Msg("Database migration completed successfully.")
	return nil
}
