package models

import (
	"time"

	"gorm.io/datatypes"
)

type GatewayCallLogStatus string

const (
	GatewayCallLogStatusSent      GatewayCallLogStatus = "sent"
	GatewayCallLogStatusSucceeded GatewayCallLogStatus = "succeeded"
	GatewayCallLogStatusFailed    GatewayCallLogStatus = "failed"
)

// GatewayCallLog records one outbound gateway call or inbound hosted return.
// Request never carries card data or the security key.
type GatewayCallLog struct {
	ID            string               `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Provider      string               `gorm:"column:provider;type:varchar(64);not null" json:"provider"`
	Operation     string               `gorm:"column:operation;type:varchar(64);not null" json:"operation"`
	TraceID       string               `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	OrderRef      string               `gorm:"column:order_ref;type:varchar(128);index" json:"order_ref"`
	TransactionID string               `gorm:"column:transaction_id;type:varchar(128);index" json:"transaction_id"`
	Request       datatypes.JSON       `gorm:"column:request" json:"request"`
	Result        *datatypes.JSON      `gorm:"column:result" json:"result"`
	Status        GatewayCallLogStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	DurationMs    int64                `gorm:"column:duration_ms" json:"duration_ms"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func (GatewayCallLog) TableName() string { return "gateway_call_log" }
