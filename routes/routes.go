// routes/routes.go
package routes

import (
	"net/http"
	"time"

	"carebow/config"
	"carebow/controllers"
	"carebow/database"
	"carebow/middleware"
	"carebow/repositories"
	"carebow/services"
	"carebow/utils"
	"carebow/websocket"
	"carebow/workers"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

// SetupRoutes wires repositories, services and controllers and returns the
// router plus the background check-in worker for main to start and stop.
func SetupRoutes(cfg *config.Config, db *mongo.Database, redisClient *redis.Client, hub *websocket.Hub) (*gin.Engine, *workers.CheckInWorker) {
	router := gin.New()

	repos := initializeRepositories(db)
	svcs := initializeServices(cfg, repos, redisClient, hub)
	ctrls := initializeControllers(svcs, hub)
	worker := initializeWorker(cfg, repos, svcs)

	setupGlobalMiddleware(router, cfg)
	setupPublicRoutes(router, redisClient)
	setupAuthenticatedRoutes(router, cfg, redisClient, ctrls, hub)

	return router, worker
}

// Repositories initialization
type Repositories struct {
	Safety *repositories.SafetyRepository
}

func initializeRepositories(db *mongo.Database) *Repositories {
	return &Repositories{
		Safety: repositories.NewSafetyRepository(db),
	}
}

// Services initialization
type Services struct {
	Geolocation   *services.GeolocationService
	Scheduler     *services.NotificationScheduler
	ScheduleStore services.NotificationStore
	Alerts        *services.AlertService
	Safety        *services.SafetyService
}

func initializeServices(cfg *config.Config, repos *Repositories, redisClient *redis.Client, hub *websocket.Hub) *Services {
	bridge := services.NewDeviceLocationBridge(hub)
	geoService := services.NewGeolocationService(bridge)
	hub.BindLocation(geoService, bridge)

	scheduleStore := services.NewRedisNotificationStore(redisClient)
	scheduler := services.NewNotificationScheduler(scheduleStore)

	messaging := utils.NewMessagingTransport(
		cfg.TwilioAccountSID,
		cfg.TwilioAuthToken,
		cfg.TwilioPhoneNumber,
		cfg.TwilioWhatsAppNumber,
	)
	alertService := services.NewAlertService(messaging)

	locationTimeout := time.Duration(cfg.LocationTimeoutSeconds) * time.Second
	safetyService := services.NewSafetyService(repos.Safety, geoService, scheduler, alertService, locationTimeout)

	return &Services{
		Geolocation:   geoService,
		Scheduler:     scheduler,
		ScheduleStore: scheduleStore,
		Alerts:        alertService,
		Safety:        safetyService,
	}
}

// Controllers initialization
type Controllers struct {
	Safety  *controllers.SafetyController
	Contact *controllers.ContactController
}

func initializeControllers(svcs *Services, hub *websocket.Hub) *Controllers {
	return &Controllers{
		Safety:  controllers.NewSafetyController(svcs.Safety, svcs.Geolocation, hub),
		Contact: controllers.NewContactController(svcs.Safety),
	}
}

func initializeWorker(cfg *config.Config, repos *Repositories, svcs *Services) *workers.CheckInWorker {
	var push workers.PushSender
	if cfg.FirebaseCredentials != "" {
		transport, err := utils.NewPushTransport(cfg.FirebaseCredentials)
		if err != nil {
			logrus.Warnf("Push transport unavailable, device notifications disabled: %v", err)
		} else {
			push = transport
		}
	} else {
		logrus.Warn("FIREBASE_CREDENTIALS not set, device notifications disabled")
	}

	pollInterval := time.Duration(cfg.CheckInPollSeconds) * time.Second
	return workers.NewCheckInWorker(svcs.ScheduleStore, svcs.Scheduler, svcs.Safety, repos.Safety, push, pollInterval)
}

// Global middleware setup
func setupGlobalMiddleware(router *gin.Engine, cfg *config.Config) {
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(middleware.LoggerConfig{
		SkipPaths: []string{"/health"},
	}))
	router.Use(middleware.CORSMiddleware(cfg.Environment))
}

// Public routes (no authentication required)
func setupPublicRoutes(router *gin.Engine, redisClient *redis.Client) {
	router.GET("/health", func(c *gin.Context) {
		dbHealth := database.HealthCheck()

		redisStatus := "healthy"
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			redisStatus = "unhealthy"
		}

		svcStatuses := map[string]string{
			"database": dbHealth["status"].(string),
			"redis":    redisStatus,
		}

		response := utils.HealthCheckResponse(svcStatuses, "1.0.0", time.Since(startTime).String())
		status := http.StatusOK
		if response.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, response)
	})
}

var startTime = time.Now()

// Authenticated routes
func setupAuthenticatedRoutes(router *gin.Engine, cfg *config.Config, redisClient *redis.Client, ctrls *Controllers, hub *websocket.Hub) {
	jwtService := utils.NewJWTService(cfg.JWTSecret)
	authMiddleware := middleware.NewAuthMiddleware(jwtService)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Redis:     redisClient,
		Requests:  cfg.RateLimitRequest,
		Window:    time.Duration(cfg.RateLimitWindow) * time.Minute,
		KeyPrefix: "safety:rate",
	})

	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware.RequireAuth())
	v1.Use(rateLimiter.Middleware())

	safety := v1.Group("/safety")
	{
		safety.GET("", ctrls.Safety.GetState)
		safety.GET("/checkin", ctrls.Safety.GetCheckInState)
		safety.POST("/checkin", ctrls.Safety.RecordCheckIn)
		safety.POST("/sos", ctrls.Safety.TriggerSOS)
		safety.POST("/test-alert", ctrls.Safety.SendTestAlert)
		safety.GET("/events", ctrls.Safety.GetEvents)

		safety.GET("/location", ctrls.Safety.GetCurrentLocation)
		safety.POST("/location", ctrls.Safety.ReportPosition)

		safety.PATCH("/settings", ctrls.Safety.UpdateSettings)
		safety.POST("/settings/reset", ctrls.Safety.ResetSettings)
		safety.PATCH("/permissions", ctrls.Safety.UpdatePermissions)
		safety.POST("/devices", ctrls.Safety.RegisterDevice)

		contacts := safety.Group("/contacts")
		{
			contacts.GET("", ctrls.Contact.GetContacts)
			contacts.POST("", ctrls.Contact.AddContact)
			contacts.PATCH("/:contactId", ctrls.Contact.UpdateContact)
			contacts.DELETE("/:contactId", ctrls.Contact.DeleteContact)
			contacts.POST("/:contactId/primary", ctrls.Contact.SetPrimaryContact)
		}
	}

	// WebSocket endpoint for device position reports and event streaming
	ws := router.Group("/ws")
	ws.Use(authMiddleware.RequireAuth())
	ws.GET("", websocket.ServeWS(hub))
}
