package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"opscore/internal/auth"
	"opscore/internal/models"
)

func ListUsers(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var users []models.User
		_ = db.WithContext(r.Context()).Preload("Roles").Order("created_at desc").Find(&users).Error
		respondJSON(w, users)
	}
}

func CreateUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email            string   `json:"email"`
			Password         string   `json:"password"`
			DisplayName      string   `json:"display_name"`
			TwoFactorEnabled bool     `json:"two_factor_enabled"`
			Roles            []string `json:"roles"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" || req.Password == "" {
			http.Error(w, "email/password required", http.StatusBadRequest)
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			http.Error(w, "hash error", http.StatusInternalServerError)
			return
		}
		u := models.User{
			ID:               uuid.NewString(),
			Email:            req.Email,
			PasswordHash:     hash,
			DisplayName:      req.DisplayName,
			IsActive:         true,
			TwoFactorEnabled: req.TwoFactorEnabled,
			CreatedAt:        time.Now(),
			UpdatedAt:        time.Now(),
		}
		var roles []models.Role
		if len(req.Roles) > 0 {
			_ = db.WithContext(r.Context()).Where("name IN ?", req.Roles).Find(&roles).Error
		}
		u.Roles = roles
		if err := db.WithContext(r.Context()).Create(&u).Error; err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		respondJSON(w, map[string]any{"id": u.ID})
	}
}

func UpdateUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Email            *string  `json:"email"`
			DisplayName      *string  `json:"display_name"`
			IsActive         *bool    `json:"is_active"`
			TwoFactorEnabled *bool    `json:"two_factor_enabled"`
			Password         *string  `json:"password"`
			Roles            []string `json:"roles"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var u models.User
		if err := db.WithContext(r.Context()).Preload("Roles").First(&u, "id = ?", id).Error; err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if req.Email != nil {
			u.Email = strings.TrimSpace(strings.ToLower(*req.Email))
		}
		if req.DisplayName != nil {
			u.DisplayName = *req.DisplayName
		}
		if req.IsActive != nil {
			u.IsActive = *req.IsActive
		}
		if req.TwoFactorEnabled != nil {
			u.TwoFactorEnabled = *req.TwoFactorEnabled
		}
		if req.Password != nil && *req.Password != "" {
			hash, err := auth.HashPassword(*req.Password)
			if err != nil {
				http.Error(w, "hash error", http.StatusInternalServerError)
				return
			}
			u.PasswordHash = hash
		}
		if req.Roles != nil {
			var roles []models.Role
			_ = db.WithContext(r.Context()).Where("name IN ?", req.Roles).Find(&roles).Error
			_ = db.WithContext(r.Context()).Model(&u).Association("Roles").Replace(roles)
		}
		u.UpdatedAt = time.Now()
		if err := db.WithContext(r.Context()).Save(&u).Error; err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, map[string]any{"updated": true})
	}
}

func DeleteUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var u models.User
		if err := db.WithContext(r.Context()).First(&u, "id = ?", id).Error; err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := db.WithContext(r.Context()).Delete(&u).Error; err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, map[string]any{"deleted": true})
	}
}
