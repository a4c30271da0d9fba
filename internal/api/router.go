package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendconsole/internal/api/handlers"
	"attendconsole/internal/api/ws"
	"attendconsole/internal/auth"
	"attendconsole/internal/httpmiddleware"
	"attendconsole/internal/inflight"
)

type RouterConfig struct {
	Tokens       *auth.Tokens
	Admin        auth.Admin
	Attendance   handlers.AttendanceService
	Exporter     handlers.Exporter
	Registrar    handlers.Registrar
	Recognition  handlers.RecognitionService
	Dashboard    handlers.Dashboard
	Guard        inflight.Guard
	Hub          *ws.Hub
	Limiter      *httpmiddleware.TokenBucket
	Checks       []handlers.Check
	AllowOrigins []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(corsMiddleware(cfg.AllowOrigins))
	r.Use(SecurityHeaders())
	if cfg.Limiter != nil {
		r.Use(cfg.Limiter.GinMiddleware())
	}

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks...)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authH := handlers.NewAuthHandler(cfg.Tokens, cfg.Admin)
	r.POST("/v1/auth/login", authH.Login)
	r.POST("/v1/auth/refresh", authH.Refresh)

	v1 := r.Group("/v1", auth.AdminAuth(cfg.Tokens))

	v1.GET("/ws", cfg.Hub.HandleWS)

	dashH := handlers.NewDashboardHandler(cfg.Dashboard)
	v1.GET("/dashboard", dashH.Get)
	v1.PUT("/dashboard/date", dashH.SetDate)

	attH := handlers.NewAttendanceHandler(cfg.Attendance, cfg.Dashboard)
	v1.GET("/stats", attH.Stats)
	v1.GET("/attendance", attH.List)
	v1.POST("/attendance", attH.Mark)
	v1.GET("/students", attH.Students)
	v1.GET("/students/:id", attH.Student)

	studentH := handlers.NewStudentHandler(cfg.Registrar, cfg.Guard, cfg.Dashboard)
	v1.POST("/students", studentH.Register)

	exportH := handlers.NewExportHandler(cfg.Exporter, cfg.Guard, cfg.Dashboard)
	v1.GET("/export/xlsx", exportH.XLSX)
	v1.GET("/export/csv", exportH.CSV)
	v1.POST("/export/sheets", exportH.Sheets)

	recH := handlers.NewRecognitionHandler(cfg.Recognition, cfg.Dashboard)
	v1.POST("/recognition/toggle", recH.Toggle)
	v1.GET("/recognition/current", recH.Current)
	v1.POST("/recognition/reset", recH.Reset)
	v1.GET("/recognition/links", recH.Links)

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return cors.Default()
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
