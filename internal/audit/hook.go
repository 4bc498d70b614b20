// Package audit captures pending entity mutations at the persistence commit
// path and appends one immutable audit entry per mutated entity to the same
// transaction, so either both commit or neither does.
package audit

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"opscore/internal/models"
)

const (
	ActionAdded    = "ADDED"
	ActionModified = "MODIFIED"
	ActionDeleted  = "DELETED"
)

// exempt lists tables whose writes never produce audit entries: the audit
// and failure stores themselves (insert recursion) and the session/step-up
// plumbing, which mutates on every auth transition.
var exempt = map[string]bool{
	"audit_entries":      true,
	"failure_entries":    true,
	"session_records":    true,
	"step_up_challenges": true,
}

// Plugin wires the capture callbacks into a gorm DB. Install once at
// startup with db.Use(audit.NewPlugin(lg)).
type Plugin struct {
	lg *zap.SugaredLogger
}

func NewPlugin(lg *zap.SugaredLogger) *Plugin {
	return &Plugin{lg: lg}
}

func (p *Plugin) Name() string { return "opscore:audit" }

func (p *Plugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register("audit:create", p.beforeCreate); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("audit:update", p.beforeUpdate); err != nil {
		return err
	}
	return db.Callback().Delete().Before("gorm:delete").Register("audit:delete", p.beforeDelete)
}

func (p *Plugin) beforeCreate(tx *gorm.DB) {
	stmt := tx.Statement
	if stmt.Schema == nil || exempt[stmt.Table] {
		return
	}
	forEachEntity(stmt.ReflectValue, func(entity any) {
		entry := p.newEntry(tx, stmt.Schema.Name, ActionAdded)
		entry.NewValues = snapshot(p.lg, entity)
		p.append(tx, entry)
	})
}

func (p *Plugin) beforeUpdate(tx *gorm.DB) {
	stmt := tx.Statement
	if stmt.Schema == nil || exempt[stmt.Table] {
		return
	}
	forEachEntity(stmt.ReflectValue, func(entity any) {
		entry := p.newEntry(tx, stmt.Schema.Name, ActionModified)
		entry.OldValues = p.priorSnapshot(tx, entity)
		entry.NewValues = snapshot(p.lg, entity)
		p.append(tx, entry)
	})
}

func (p *Plugin) beforeDelete(tx *gorm.DB) {
	stmt := tx.Statement
	if stmt.Schema == nil || exempt[stmt.Table] {
		return
	}
	forEachEntity(stmt.ReflectValue, func(entity any) {
		entry := p.newEntry(tx, stmt.Schema.Name, ActionDeleted)
		entry.OldValues = p.priorSnapshot(tx, entity)
		p.append(tx, entry)
	})
}

func (p *Plugin) newEntry(tx *gorm.DB, entityName, action string) *models.AuditEntry {
	entry := &models.AuditEntry{
		ID:         uuid.NewString(),
		EntityName: entityName,
		Action:     action,
		Timestamp:  time.Now().UTC(),
	}
	if info, ok := RequestInfoFromContext(tx.Statement.Context); ok {
		entry.UserID = info.UserID
		if info.IP != "" {
			ip := info.IP
			entry.RequestIP = &ip
		}
		if info.Endpoint != "" {
			ep := info.Endpoint
			entry.Endpoint = &ep
		}
	}
	return entry
}

// append inserts the entry through the statement's connection, which inside
// a transaction is the transaction itself. An insert failure aborts the
// whole commit together with the mutation it describes.
func (p *Plugin) append(tx *gorm.DB, entry *models.AuditEntry) {
	if err := tx.Session(&gorm.Session{NewDB: true}).Create(entry).Error; err != nil {
		tx.AddError(fmt.Errorf("audit append: %w", err))
	}
}

// priorSnapshot reads the row's current values by primary key in the same
// transaction. A missing row or snapshot error degrades to a null snapshot
// with a warning; it does not block the mutation.
func (p *Plugin) priorSnapshot(tx *gorm.DB, entity any) *models.JSONB {
	stmt := tx.Statement
	field := stmt.Schema.PrioritizedPrimaryField
	if field == nil {
		return nil
	}
	pk, zero := field.ValueOf(stmt.Context, reflect.Indirect(reflect.ValueOf(entity)))
	if zero {
		p.lg.Warnw("audit: entity has no primary key value, old snapshot skipped",
			"entity", stmt.Schema.Name)
		return nil
	}
	prior := reflect.New(stmt.Schema.ModelType).Interface()
	err := tx.Session(&gorm.Session{NewDB: true}).
		Table(stmt.Table).
		Where(field.DBName+" = ?", pk).
		Take(prior).Error
	if err != nil {
		p.lg.Warnw("audit: prior snapshot fetch failed",
			"entity", stmt.Schema.Name, "error", err)
		return nil
	}
	return snapshot(p.lg, prior)
}

func snapshot(lg *zap.SugaredLogger, entity any) *models.JSONB {
	b, err := json.Marshal(entity)
	if err != nil {
		lg.Warnw("audit: snapshot serialization failed", "error", err)
		return nil
	}
	j := models.JSONB(b)
	return &j
}

// forEachEntity visits the statement destination, which gorm presents as a
// struct or a slice of structs for batch operations. Visit order follows
// the change set's insertion order.
func forEachEntity(rv reflect.Value, visit func(entity any)) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			elem := rv.Index(i)
			if elem.Kind() != reflect.Ptr {
				elem = elem.Addr()
			}
			visit(elem.Interface())
		}
	case reflect.Struct:
		if rv.CanAddr() {
			visit(rv.Addr().Interface())
		} else {
			visit(rv.Interface())
		}
	}
}
