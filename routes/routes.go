package routes

import (
	"academyhub/controllers"
	"academyhub/handlers"
	"academyhub/middleware"
	"academyhub/services"
	"academyhub/services/websocket"
	"academyhub/storage"

	"github.com/gofiber/fiber/v2"
)

// Deps are the long-lived collaborators the routes need. Nil Files or Line
// disable uploads and the LINE webhook respectively.
type Deps struct {
	Hub     *websocket.Hub
	Files   storage.FileStore
	Archive *services.LogArchiveService
	Health  *services.HealthService
	Line    *handlers.LineWebhookHandler
}

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, d Deps) {
	authController := &controllers.AuthController{}
	academyController := &controllers.AcademyController{}
	userController := &controllers.UserController{}
	teacherController := &controllers.TeacherController{}
	classroomController := &controllers.ClassroomController{}
	subjectController := &controllers.SubjectController{}
	classController := &controllers.ClassController{}
	studentController := &controllers.StudentController{Files: d.Files}
	parentController := &controllers.ParentController{}
	enrollmentController := &controllers.EnrollmentController{}
	paymentController := &controllers.PaymentController{Files: d.Files}
	attendanceController := &controllers.AttendanceController{}
	scheduleController := &controllers.ScheduleController{}
	settingsController := &controllers.SettingsController{}
	dashboardController := &controllers.DashboardController{}
	notificationController := &controllers.NotificationController{}
	portalController := &controllers.ParentPortalController{}
	logController := controllers.NewLogController(d.Archive)
	healthController := controllers.NewHealthController(d.Health)

	app.Get("/health", healthController.GetHealthStatus)
	if d.Line != nil {
		app.Post("/line/webhook", d.Line.Handle)
	}

	api := app.Group("/api")

	// Authentication routes (no middleware)
	auth := api.Group("/auth")
	auth.Post("/login", authController.Login)
	auth.Post("/register-academy", authController.RegisterAcademy)

	protected := api.Group("/", middleware.JWTMiddleware())

	protected.Get("/auth/profile", authController.GetProfile)
	protected.Put("/auth/password", authController.ChangePassword)
	protected.Post("/auth/logout", authController.Logout)

	staff := middleware.RequireStaff()
	managers := middleware.RequireOwnerOrAdmin()

	academies := protected.Group("/academies")
	academies.Get("/", managers, academyController.GetAcademies)
	academies.Get("/:id", managers, academyController.GetAcademy)
	academies.Post("/", middleware.RequireSuperAdmin(), academyController.CreateAcademy)
	academies.Put("/:id", middleware.RequireRole("owner"), academyController.UpdateAcademy)
	academies.Delete("/:id", middleware.RequireSuperAdmin(), academyController.DeleteAcademy)

	users := protected.Group("/users", managers)
	users.Get("/", userController.GetUsers)
	users.Get("/:id", userController.GetUser)
	users.Post("/", userController.CreateUser)
	users.Put("/:id", userController.UpdateUser)
	users.Delete("/:id", userController.DeleteUser)

	teachers := protected.Group("/teachers")
	teachers.Get("/", staff, teacherController.GetTeachers)
	teachers.Get("/:id", staff, teacherController.GetTeacher)
	teachers.Post("/", managers, teacherController.CreateTeacher)
	teachers.Put("/:id", managers, teacherController.UpdateTeacher)
	teachers.Delete("/:id", managers, teacherController.DeleteTeacher)

	classrooms := protected.Group("/classrooms")
	classrooms.Get("/", staff, classroomController.GetClassrooms)
	classrooms.Post("/find-or-create", managers, classroomController.FindOrCreateClassroom)
	classrooms.Get("/:id", staff, classroomController.GetClassroom)
	classrooms.Post("/", managers, classroomController.CreateClassroom)
	classrooms.Put("/:id", managers, classroomController.UpdateClassroom)
	classrooms.Delete("/:id", managers, classroomController.DeleteClassroom)

	subjects := protected.Group("/subjects")
	subjects.Get("/", staff, subjectController.GetSubjects)
	subjects.Get("/:id", staff, subjectController.GetSubject)
	subjects.Post("/", managers, subjectController.CreateSubject)
	subjects.Put("/:id", managers, subjectController.UpdateSubject)
	subjects.Delete("/:id", managers, subjectController.DeleteSubject)

	classes := protected.Group("/classes")
	classes.Get("/", staff, classController.GetClasses)
	classes.Get("/:id", staff, classController.GetClass)
	classes.Get("/:id/students", staff, classController.GetRoster)
	classes.Post("/", managers, classController.CreateClass)
	classes.Put("/:id", managers, classController.UpdateClass)
	classes.Delete("/:id", managers, classController.DeleteClass)

	students := protected.Group("/students")
	students.Get("/", staff, studentController.GetStudents)
	students.Get("/export", managers, studentController.ExportStudents)
	students.Post("/import", managers, studentController.ImportStudents)
	students.Get("/:id", staff, studentController.GetStudent)
	students.Post("/", managers, studentController.CreateStudent)
	students.Put("/:id", managers, studentController.UpdateStudent)
	students.Delete("/:id", managers, studentController.DeleteStudent)
	students.Post("/:id/photo", managers, studentController.UploadPhoto)

	parents := protected.Group("/parents", managers)
	parents.Get("/", parentController.GetParents)
	parents.Get("/:id", parentController.GetParent)
	parents.Post("/", parentController.CreateParent)
	parents.Put("/:id", parentController.UpdateParent)
	parents.Delete("/:id", parentController.DeleteParent)
	parents.Post("/:id/link-code", parentController.RegenerateLinkCode)

	enrollments := protected.Group("/enrollments")
	enrollments.Get("/", staff, enrollmentController.GetEnrollments)
	enrollments.Get("/:id", staff, enrollmentController.GetEnrollment)
	enrollments.Post("/", managers, enrollmentController.CreateEnrollment)
	enrollments.Put("/:id", managers, enrollmentController.UpdateEnrollment)
	enrollments.Delete("/:id", managers, enrollmentController.DeleteEnrollment)

	payments := protected.Group("/payments", managers)
	payments.Get("/", paymentController.GetPayments)
	payments.Get("/export", paymentController.ExportPayments)
	payments.Get("/outstanding", paymentController.GetOutstanding)
	payments.Get("/:id", paymentController.GetPayment)
	payments.Post("/", paymentController.CreatePayment)
	payments.Put("/:id", paymentController.UpdatePayment)
	payments.Delete("/:id", paymentController.DeletePayment)
	payments.Post("/:id/receipt", paymentController.UploadReceipt)

	revenue := protected.Group("/revenue", managers)
	revenue.Get("/daily", paymentController.GetDailyRevenue)
	revenue.Get("/range", paymentController.GetRevenueRange)

	attendance := protected.Group("/attendance", staff)
	attendance.Get("/", attendanceController.GetAttendance)
	attendance.Get("/summary", attendanceController.GetSummary)
	attendance.Post("/bulk", attendanceController.BulkMarkAttendance)
	attendance.Get("/:id", attendanceController.GetAttendanceRecord)
	attendance.Post("/", attendanceController.CreateAttendance)
	attendance.Put("/:id", attendanceController.UpdateAttendance)
	attendance.Delete("/:id", managers, attendanceController.DeleteAttendance)

	schedules := protected.Group("/schedules")
	schedules.Get("/", staff, scheduleController.GetSchedules)
	schedules.Get("/timetable", staff, scheduleController.GetTimetable)
	schedules.Get("/sessions", staff, scheduleController.GetSessions)
	schedules.Post("/check-conflict", managers, scheduleController.CheckConflict)
	schedules.Get("/:id", staff, scheduleController.GetSchedule)
	schedules.Post("/", managers, scheduleController.CreateSchedule)
	schedules.Put("/:id", managers, scheduleController.UpdateSchedule)
	schedules.Delete("/:id", managers, scheduleController.DeleteSchedule)

	protected.Get("/timetable-settings", staff, settingsController.GetTimetableSettings)
	protected.Put("/timetable-settings", managers, settingsController.UpdateTimetableSettings)

	protected.Get("/dashboard/stats", managers, dashboardController.GetStats)

	notifications := protected.Group("/notifications")
	notifications.Get("/", notificationController.GetNotifications)
	notifications.Get("/unread-count", notificationController.GetUnreadCount)
	notifications.Patch("/mark-all-read", notificationController.MarkAllAsRead)
	notifications.Post("/", managers, notificationController.CreateNotification)
	notifications.Get("/:id", notificationController.GetNotification)
	notifications.Patch("/:id/read", notificationController.MarkAsRead)
	notifications.Delete("/:id", notificationController.DeleteNotification)

	portal := protected.Group("/parent", middleware.RequireRole("parent"))
	portal.Get("/profile", portalController.GetProfile)
	portal.Get("/children", portalController.GetChildren)
	portal.Get("/children/:id", portalController.GetChild)
	portal.Get("/children/:id/attendance", portalController.GetChildAttendance)
	portal.Get("/children/:id/payments", portalController.GetChildPayments)
	portal.Get("/children/:id/schedule", portalController.GetChildSchedule)

	logs := protected.Group("/logs", managers)
	logs.Get("/", logController.GetLogs)
	logs.Get("/stats", logController.GetLogStats)
	logs.Get("/archives", middleware.RequireSuperAdmin(), logController.ListArchives)
	logs.Get("/archives/:id/download", middleware.RequireSuperAdmin(), logController.DownloadArchive)
	logs.Post("/archive", middleware.RequireSuperAdmin(), logController.ArchiveLogs)
	logs.Post("/flush", middleware.RequireSuperAdmin(), logController.FlushCachedLogs)
	logs.Get("/:id", logController.GetLog)

	if d.Hub != nil {
		wsController := controllers.NewWebSocketController(d.Hub)
		protected.Get("/ws/stats", managers, wsController.GetWebSocketStats)
		app.Get("/ws", wsController.Upgrade, wsController.WebSocketHandler())
	}
}
