package handlers

import (
	"github.com/fatflowers/creator-cashier/internal/app/service/charge"
	"github.com/fatflowers/creator-cashier/internal/app/service/checkout"
	"github.com/fatflowers/creator-cashier/internal/app/service/ledger"
	"github.com/fatflowers/creator-cashier/internal/app/service/reconcile"
	"github.com/fatflowers/creator-cashier/internal/app/service/subscription"
	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespCharge wraps ChargeResponse in the standard envelope.
type RespCharge struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    charge.ChargeResponse    `json:"data"`
}

type RespCredits struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    CreditsView              `json:"data"`
}

type RespLedgerEntry struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    models.CreditsLedgerEntry `json:"data"`
}

type RespVerifyReport struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ledger.VerifyReport      `json:"data"`
}

// RespReconcileSummary wraps the reconciliation run summary in the standard envelope.
type RespReconcileSummary struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    reconcile.Summary        `json:"data"`
}

type RespOrders struct {
	Code    response.APIResponseCode    `json:"code"`
	Message string                      `json:"message"`
	Data    checkout.ScanOrdersResponse `json:"data"`
}

type RespOrder struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Order             `json:"data"`
}

type RespReconciliationEvents struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    []models.ReconciliationEvent `json:"data"`
}

type RespSubscriptionStatus struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    subscription.Status      `json:"data"`
}
