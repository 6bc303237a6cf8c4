package handlers

import (
	"errors"
	"net/http"

	"github.com/fatflowers/creator-cashier/internal/app/repository"
	"github.com/fatflowers/creator-cashier/internal/app/service/catalog"
	"github.com/fatflowers/creator-cashier/internal/app/service/charge"
	"github.com/fatflowers/creator-cashier/internal/app/service/checkout"
	"github.com/fatflowers/creator-cashier/internal/app/service/customer"
	"github.com/fatflowers/creator-cashier/internal/app/service/ledger"
	"github.com/fatflowers/creator-cashier/internal/app/service/reconcile"
	"github.com/fatflowers/creator-cashier/pkg/logctx"
	"github.com/fatflowers/creator-cashier/pkg/response"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errorCodes = []struct {
	code response.APIResponseCode
	errs []error
}{
	{response.APIResponseCodeBadRequest, []error{
		charge.ErrValidation, charge.ErrUnverified, reconcile.ErrInvalidRange,
		ledger.ErrZeroDelta, ledger.ErrInvalidAmount, customer.ErrInvalidEmail,
		checkout.ErrMissingTransaction, types.ErrInvalidFilter,
	}},
	{response.APIResponseCodeNotFound, []error{repository.ErrNotFound}},
	{response.APIResponseCodeConflict, []error{
		ledger.ErrInsufficientCredits, customer.ErrHasHistory, catalog.ErrOfferReferenced,
		checkout.ErrOrderNotRefundable, checkout.ErrAlreadyRecorded, charge.ErrAlreadyCaptured,
		reconcile.ErrRunInProgress, types.ErrIllegalTransition, repository.ErrDuplicate,
	}},
	{response.APIResponseCodeGatewayUnknown, []error{charge.ErrGatewayUnavailable, reconcile.ErrGatewayUnreachable}},
}

func codeFor(err error) response.APIResponseCode {
	for _, group := range errorCodes {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.code
			}
		}
	}
	return response.APIResponseCodeError
}

// fail writes the error envelope. Unexpected errors are logged, domain errors are not.
func fail(c *gin.Context, err error) {
	code := codeFor(err)
	if code == response.APIResponseCodeError {
		logctx.FromGin(c, zap.NewNop().Sugar()).Errorw("request_failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(http.StatusOK, response.ErrorT[any](code, err.Error()))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
}
