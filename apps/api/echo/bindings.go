package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/safnadck/myapplication/core/fee"
)

// pathID reads an integer path param. Malformed ids are reported as not found.
func pathID(ctx echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Wrapf(fee.ErrNotFound, "%s %q", name, ctx.Param(name))
	}
	return id, nil
}

func bindBatch(ctx echo.Context) (franchiseID, batchID int64, err error) {
	if franchiseID, err = pathID(ctx, "fid"); err != nil {
		return
	}
	batchID, err = pathID(ctx, "bid")
	return
}

func bindLedgerKey(ctx echo.Context) (fee.LedgerKey, error) {
	var key fee.LedgerKey
	var err error
	if key.FranchiseID, key.BatchID, err = bindBatch(ctx); err != nil {
		return key, err
	}
	key.UserID, err = pathID(ctx, "uid")
	return key, err
}
