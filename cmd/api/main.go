package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"opscore/internal/audit"
	"opscore/internal/auth"
	"opscore/internal/failure"
	"opscore/internal/httpserver"
	"opscore/internal/logger"
	"opscore/internal/models"
	"opscore/internal/session"
)

func main() {
	_ = godotenv.Load()
	lg := logger.New()
	defer lg.Sync()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		lg.Fatalw("DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	if err := db.Use(audit.NewPlugin(lg)); err != nil {
		lg.Fatalw("audit plugin install failed", "error", err)
	}
	if err := db.AutoMigrate(
		&models.Role{}, &models.User{}, &models.Client{},
		&models.SessionRecord{}, &models.StepUpChallenge{},
		&models.AuditEntry{}, &models.FailureEntry{},
	); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}
	seedRolesAndAdmin(db, lg)

	codec := auth.CodecFromEnv()
	store := session.NewGormStore(db)
	verifier := session.NewDBVerifier(db, codec, stepUpTTL(), lg)
	mgr := session.NewManager(codec, verifier, store, lg)
	mgr.StartSweeper(context.Background(), 10*time.Minute, time.Hour)

	router := httpserver.NewRouter(httpserver.Deps{
		DB:       db,
		Codec:    codec,
		Sessions: mgr,
		Checker:  store,
		Sink:     failure.NewGormSink(db),
		Masker:   failure.MaskerFromEnv(),
	}, lg)

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}
	lg.Infow("listening", "port", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatal(err)
	}
}

func stepUpTTL() time.Duration {
	if s := os.Getenv("STEPUP_CODE_TTL"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return 5 * time.Minute
}

func seedRolesAndAdmin(db *gorm.DB, lg *zap.SugaredLogger) {
	for _, name := range []string{"admin", "manager", "hr", "finance", "security", "auditor", "employee"} {
		db.Exec("INSERT INTO roles(name) VALUES (?) ON CONFLICT DO NOTHING", name)
	}
	adminEmail := strings.ToLower("admin@opscore.local")
	var count int64
	db.Model(&models.User{}).Where("LOWER(email)=?", adminEmail).Count(&count)
	if count > 0 {
		return
	}
	pw := os.Getenv("ADMIN_PASSWORD")
	if pw == "" {
		pw = "changeme"
	}
	hash, _ := auth.HashPassword(pw)
	u := models.User{
		ID:           uuid.NewString(),
		Email:        adminEmail,
		PasswordHash: hash,
		DisplayName:  "Administrator",
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := db.Create(&u).Error; err == nil {
		var adminRole models.Role
		if err := db.First(&adminRole, "name = 'admin'").Error; err == nil {
			_ = db.Model(&u).Association("Roles").Append(&adminRole)
		}
	}
	lg.Infow("seeded default admin", "email", adminEmail)
}
