package models

import (
	"time"

	"gorm.io/datatypes"
)

// OrderStatusLog 订单状态变更日志
// Written in the same transaction as the order change it describes.
type OrderStatusLog struct {
	ID         string `gorm:"column:id;primaryKey;type:varchar(36)"`
	OrderID    string `gorm:"column:order_id;type:varchar(36);index;not null"`
	CustomerID string `gorm:"column:customer_id;type:varchar(36);not null"`
	Reason     string `gorm:"column:reason;type:varchar(64);not null"`
	// Before is null for newly created orders.
	Before    datatypes.JSONType[*Order] `gorm:"column:before"`
	After     datatypes.JSONType[*Order] `gorm:"column:after"`
	Extra     datatypes.JSONMap          `gorm:"column:extra"`
	CreatedAt time.Time                  `json:"created_at"`
}

func (OrderStatusLog) TableName() string {
	return "order_status_log"
}
