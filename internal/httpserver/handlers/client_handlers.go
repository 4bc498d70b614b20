package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"opscore/internal/models"
)

func CreateClient(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type createClientReq struct {
			CompanyName    string  `json:"company_name"`
			ProductName    *string `json:"product_name,omitempty"`
			ProductVersion *string `json:"product_version,omitempty"`
		}

		var req createClientReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		company := strings.TrimSpace(req.CompanyName)
		if company == "" {
			http.Error(w, "company_name required", http.StatusBadRequest)
			return
		}

		pname := "UNKNOWN"
		if req.ProductName != nil && strings.TrimSpace(*req.ProductName) != "" {
			pname = strings.TrimSpace(*req.ProductName)
		}
		pver := "0.0"
		if req.ProductVersion != nil && strings.TrimSpace(*req.ProductVersion) != "" {
			pver = strings.TrimSpace(*req.ProductVersion)
		}
		if utf8.RuneCountInString(pname) > 30 {
			http.Error(w, "product_name must be <= 30 characters", http.StatusBadRequest)
			return
		}
		if utf8.RuneCountInString(pver) > 5 {
			http.Error(w, "product_version must be <= 5 characters", http.StatusBadRequest)
			return
		}

		c := models.Client{
			ID:             uuid.NewString(),
			CompanyName:    company,
			ProductName:    pname,
			ProductVersion: pver,
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}
		if err := db.WithContext(r.Context()).Create(&c).Error; err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		respondJSON(w, c)
	}
}

func ListClients(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cs []models.Client
		_ = db.WithContext(r.Context()).Order("created_at desc").Find(&cs).Error
		respondJSON(w, cs)
	}
}

func UpdateClient(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			CompanyName *string `json:"company_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var c models.Client
		if err := db.WithContext(r.Context()).First(&c, "id = ?", id).Error; err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if req.CompanyName != nil {
			c.CompanyName = *req.CompanyName
		}
		c.UpdatedAt = time.Now()
		if err := db.WithContext(r.Context()).Save(&c).Error; err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, map[string]any{"updated": true})
	}
}

func DeleteClient(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		// Load first so the capture hook can snapshot prior values by key.
		var c models.Client
		if err := db.WithContext(r.Context()).First(&c, "id = ?", id).Error; err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := db.WithContext(r.Context()).Delete(&c).Error; err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, map[string]any{"deleted": true})
	}
}
