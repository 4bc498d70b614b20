package handlers

import (
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"opscore/internal/models"
)

// AuditEntries lists recent audit entries. The stores are append-only;
// this surface is read-only by construction.
func AuditEntries(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := db.WithContext(r.Context()).Order("timestamp desc").Limit(200)
		if entity := r.URL.Query().Get("entity"); entity != "" {
			q = q.Where("entity_name = ?", entity)
		}
		if uid := r.URL.Query().Get("user_id"); uid != "" {
			q = q.Where("user_id = ?", uid)
		}
		var entries []models.AuditEntry
		_ = q.Find(&entries).Error
		respondJSON(w, entries)
	}
}

// FailureEntries lists recent failure entries.
func FailureEntries(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := db.WithContext(r.Context()).Order("timestamp desc").Limit(200)
		if tid := r.URL.Query().Get("trace_id"); tid != "" {
			q = q.Where("trace_id = ?", tid)
		}
		var entries []models.FailureEntry
		_ = q.Find(&entries).Error
		respondJSON(w, entries)
	}
}
