package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/sahityolsav/stage-tracker/internal/config"
	"github.com/sahityolsav/stage-tracker/internal/database"
	"github.com/sahityolsav/stage-tracker/internal/handler"
	"github.com/sahityolsav/stage-tracker/internal/middleware"
	"github.com/sahityolsav/stage-tracker/internal/queue"
	"github.com/sahityolsav/stage-tracker/internal/repository"
	"github.com/sahityolsav/stage-tracker/internal/router"
)

func main() {
	// Best effort: a missing .env just means the variables come from the
	// real environment.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database open failed: %v", err)
	}
	if err := database.InitSchema(db); err != nil {
		log.Fatalf("schema init failed: %v", err)
	}

	// Redis backs response caching and rate limiting; nil disables both.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; caching and rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	sectors := repository.NewSectorRepo(db)
	stages := repository.NewStageRepo(db)
	units := repository.NewUnitRepo(db)
	competitions := repository.NewCompetitionRepo(db)
	placements := repository.NewPlacementRepo(db)
	attendance := repository.NewAttendanceRepo(db)

	authH := handler.NewAuthHandler(cfg, users, tokens, sectors, stages, units)
	adminH := handler.NewAdminHandler(cfg, db, users, stages, units, sectors, competitions, placements)
	dirH := handler.NewDirectoryHandler(stages, units, competitions)
	schedH := handler.NewScheduleHandler(placements, attendance, stages, competitions)
	attH := handler.NewAttendanceHandler(attendance)
	viewH := handler.NewViewHandler(placements, stages)

	e := echo.New()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH)
	router.RegisterAPI(e, router.APIHandlers{
		Auth:       authH,
		Admin:      adminH,
		Directory:  dirH,
		Schedule:   schedH,
		Attendance: attH,
		Views:      viewH,
	}, cfg.JWTSecret, middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	// Background consumer: appends schedule.changed events to
	// logs/schedule.log, reconnecting forever.
	go func() {
		if err := queue.StartScheduleConsumer(); err != nil {
			log.Printf("schedule consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
