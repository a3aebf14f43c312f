package config

import (
	"errors"

	"gorm.io/gorm"
)

// AuditGuardPlugin enforces the append-only transfer log when
// STRICT_TRANSFER_IMMUTABLE is set: stock_transfers rows cannot be updated or
// deleted through GORM. Corrections happen through new transfers in the
// opposite direction.
//
// NOTE: like the tenant guard, this does not apply to Raw SQL.
type AuditGuardPlugin struct{}

func NewAuditGuardPlugin() *AuditGuardPlugin { return &AuditGuardPlugin{} }

func (p *AuditGuardPlugin) Name() string { return "audit_guard" }

func (p *AuditGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Update().Before("gorm:update").Register("audit_guard:update", auditGuardCallback); err != nil {
		return err
	}
	return db.Callback().Delete().Before("gorm:delete").Register("audit_guard:delete", auditGuardCallback)
}

var ErrTransferRecordImmutable = errors.New("stock transfer records are immutable")

func auditGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	if !StrictTransferImmutability() {
		return
	}
	if db.Statement.Table != "stock_transfers" {
		return
	}
	db.AddError(ErrTransferRecordImmutable)
}
