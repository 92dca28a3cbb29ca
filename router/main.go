package router

import (
	"github.com/MEmshousen/CodeRED2025-404NotFound/database"
	"github.com/MEmshousen/CodeRED2025-404NotFound/handlers"
	analytics_handlers "github.com/MEmshousen/CodeRED2025-404NotFound/handlers/analytics"
	auth_handlers "github.com/MEmshousen/CodeRED2025-404NotFound/handlers/auth"
	course_handlers "github.com/MEmshousen/CodeRED2025-404NotFound/handlers/course"
	painpoint_handlers "github.com/MEmshousen/CodeRED2025-404NotFound/handlers/painpoint"
	stream_handlers "github.com/MEmshousen/CodeRED2025-404NotFound/handlers/stream"
	studypacket_handlers "github.com/MEmshousen/CodeRED2025-404NotFound/handlers/studypacket"
	"github.com/MEmshousen/CodeRED2025-404NotFound/model"
	"github.com/MEmshousen/CodeRED2025-404NotFound/services"
	"github.com/MEmshousen/CodeRED2025-404NotFound/services/realtime"
	"github.com/MEmshousen/CodeRED2025-404NotFound/services/storage"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/auth"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/middleware"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Dependencies are the long-lived components the routes are built from.
type Dependencies struct {
	Store      database.Storage
	JWTManager *auth.JWTManager
	Hub        *realtime.Hub
	// Publisher delivers room events. Usually the configured broker.
	Publisher realtime.Publisher
	// Blobs may be nil when no bucket is configured.
	Blobs         storage.BlobStore
	ServiceAPIKey string
	Security      middleware.SecurityConfig
	Log           *zap.Logger
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	store, log := deps.Store, deps.Log

	authMiddleware := middleware.NewAuthMiddleware(deps.JWTManager, store, log)
	teacherOnly := authMiddleware.RequireRole(model.RoleTeacher)

	// Services
	courseService := services.NewCourseService(store, log)
	materialService := services.NewMaterialService(store, deps.Blobs, log)
	painPointService := services.NewPainPointService(store, deps.Publisher, log)
	analyticsService := services.NewAnalyticsService(store, log)
	studyPacketService := services.NewStudyPacketService(store, log)

	// Handlers
	courseHandler := course_handlers.NewCourseHandler(courseService, materialService, log)
	painPointHandler := painpoint_handlers.NewPainPointHandler(painPointService, log)
	analyticsHandler := analytics_handlers.NewAnalyticsHandler(analyticsService, log)
	studyPacketHandler := studypacket_handlers.NewStudyPacketHandler(studyPacketService, log)
	streamHandler := stream_handlers.NewStreamHandler(courseService, deps.Hub, log)

	middleware.SetupSecurity(app, deps.Security)

	// Health check endpoint (public)
	app.Get("/ping", func(c *fiber.Ctx) error {
		return handlers.HandleCheckHealth(c, store)
	})

	// API v1 group, every route authenticated
	api := app.Group("/api/v1", authMiddleware.Required())

	api.Get("/me", auth_handlers.GetProfile)

	// Courses
	courses := api.Group("/courses")
	courses.Get("/", courseHandler.ListCourses)
	courses.Post("/", teacherOnly, courseHandler.CreateCourse)
	courses.Get("/:id", courseHandler.GetCourse)
	courses.Put("/:id", teacherOnly, courseHandler.UpdateCourse)
	courses.Delete("/:id", teacherOnly, courseHandler.DeleteCourse)
	courses.Post("/:id/join", courseHandler.JoinCourse)
	courses.Get("/:id/stream", streamHandler.StreamCourse)

	// Materials (nested under courses)
	courses.Get("/:id/materials", courseHandler.ListMaterials)
	courses.Post("/:id/materials", teacherOnly, courseHandler.UploadMaterial)
	courses.Get("/:id/materials/:material_id/download", courseHandler.DownloadMaterial)

	// Pain point ledger
	painPoints := api.Group("/pain-points")
	painPoints.Get("/", painPointHandler.ListPainPoints)
	painPoints.Post("/", painPointHandler.CreatePainPoint)
	painPoints.Get("/:id", painPointHandler.GetPainPoint)
	painPoints.Delete("/:id", painPointHandler.DeletePainPoint)

	// Confusion analytics
	analytics := api.Group("/analytics")
	analytics.Get("/course", analyticsHandler.GetCourseConfusion)
	analytics.Get("/snapshots", analyticsHandler.ListSnapshots)
	analytics.Post("/snapshots", teacherOnly, analyticsHandler.CreateSnapshot)

	// Study packets
	packets := api.Group("/study-packets")
	packets.Get("/", studyPacketHandler.ListStudyPackets)
	packets.Post("/", teacherOnly, studyPacketHandler.CreateStudyPacket)
	packets.Get("/:id", studyPacketHandler.GetStudyPacket)
	packets.Post("/:id/approve", teacherOnly, studyPacketHandler.ApproveStudyPacket)

	// Generation worker callbacks, authenticated by shared key
	if deps.ServiceAPIKey != "" {
		internal := app.Group("/internal", middleware.RequireServiceKey(deps.ServiceAPIKey))
		internal.Post("/study-packets/:id/ready", studyPacketHandler.MarkReady)
		internal.Post("/study-packets/:id/sent", studyPacketHandler.MarkSent)
	} else {
		log.Warn("SERVICE_API_KEY not set, internal study packet routes disabled")
	}
}
