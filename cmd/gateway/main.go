package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/examhall/examhall/internal/api/http"
	auth "github.com/examhall/examhall/internal/auth/middleware"
	"github.com/examhall/examhall/internal/config"
	"github.com/examhall/examhall/internal/db"
	"github.com/examhall/examhall/internal/exam"
	"github.com/examhall/examhall/internal/grading"
	"github.com/examhall/examhall/internal/proctor"
	"github.com/examhall/examhall/internal/rbac"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := exam.NewSQLStore(dbh, cfg.DBDriver, grading.NewDefaultGrader())
	tracker := proctor.NewTracker(store)

	// Server-side deadline enforcement runs regardless of any client timer.
	sweeper := exam.NewSweeper(store, time.Duration(cfg.SweepIntervalSec)*time.Second)
	go sweeper.Run(context.Background())

	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))
	}

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Teacher: authoring and publishing
		pr.With(rbac.Require("exam:create")).
			Post("/exams", api.CreateExamHandler(store))
		pr.With(rbac.Require("exam:publish")).
			Post("/exams/{examID}/publish", api.PublishExamHandler(store))
		pr.With(rbac.Require("exam:view-keys")).
			Get("/exams/{examID}/full", api.GetExamAdminHandler(store))

		// Student: join and take
		pr.With(rbac.Require("exam:lookup")).
			Post("/exams/lookup", api.LookupExamHandler(store))
		pr.With(rbac.Require("exam:view")).
			Get("/exams/{examID}", api.GetExamHandler(store))
		pr.With(rbac.Require("attempt:create")).
			Post("/attempts", api.StartAttemptHandler(store))
		pr.With(rbac.Require("attempt:save")).
			Put("/attempts/{attemptID}/answers/{questionID}", api.SaveAnswerHandler(store))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(store))
		pr.With(rbac.Require("violation:report")).
			Post("/attempts/{attemptID}/violations", api.LogViolationHandler(store, tracker))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(store))

		// Teacher: review and manual grading
		pr.With(rbac.Require("attempt:grade")).
			Post("/attempts/{attemptID}/grade/{questionID}", api.GradeEssayHandler(store))
		pr.With(rbac.Require("attempt:flag")).
			Post("/attempts/{attemptID}/flag", api.FlagAttemptHandler(store))
		pr.With(rbac.Require("attempt:cancel")).
			Post("/attempts/{attemptID}/cancel", api.CancelAttemptHandler(store))
		pr.With(rbac.Require("attempt:view-all")).
			Get("/attempts/{attemptID}/violations", api.ListViolationsHandler(store))

		// Roster management for local auth
		pr.With(rbac.Require("users:roster")).
			Post("/users/roster", api.UpsertRosterHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.Post("/users/change-password", api.ChangePasswordHandler(dbh))
	})

	log.Printf("gateway listening on %s (mode=%s driver=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
