package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/safnadck/myapplication/core/fee"
)

type feeApi struct {
	svc      fee.ServiceInterface
	validate *validator.Validate
}

type (
	EnrollmentRequest struct {
		Enrolled *bool `json:"enrolled" validate:"required"`
	}

	EnrollmentResponse struct {
		Enrolled bool `json:"enrolled"`
	}

	RevokeRequest struct {
		InstallmentID string `json:"installment_id" validate:"required,notblank"`
	}

	NotifyResponse struct {
		Sent int `json:"sent"`
	}
)

func registerFeeAPI(g *echo.Group, svc fee.ServiceInterface, validate *validator.Validate) {
	api := feeApi{svc: svc, validate: validate}

	bg := g.Group("/franchises/:fid/batches/:bid")
	bg.GET("/fee-plan", api.getPlan)
	bg.POST("/fee-plan", api.openPlan)
	bg.PUT("/fee-plan", api.configureTemplate)

	sg := bg.Group("/students/:uid")
	sg.GET("/schedule", api.viewSchedule)
	sg.PUT("/schedule", api.editSchedule)
	sg.POST("/payments", api.updatePayments)
	sg.POST("/enrollment", api.setEnrollment)
	sg.GET("/installments/:iid/invoice", api.invoice)

	rg := g.Group("/fee-reminders")
	rg.GET("", api.reminders)
	rg.POST("/revoke", api.revokeAccess)
	rg.POST("/notify", api.notifyUpcoming)
}

// Handlers

func (api *feeApi) getPlan(ctx echo.Context) error {
	fid, bid, err := bindBatch(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.GetFeePlan(ctx.Request().Context(), fid, bid)
	if err != nil {
		return errors.Wrap(err, "getting fee plan")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *feeApi) openPlan(ctx echo.Context) error {
	fid, bid, err := bindBatch(ctx)
	if err != nil {
		return err
	}
	var data fee.NewFeePlan
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeePlan")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	view, err := api.svc.OpenFeePlan(ctx.Request().Context(), fid, bid, data)
	if err != nil {
		return errors.Wrap(err, "opening fee plan")
	}
	return ctx.JSON(http.StatusCreated, view)
}

func (api *feeApi) configureTemplate(ctx echo.Context) error {
	fid, bid, err := bindBatch(ctx)
	if err != nil {
		return err
	}
	var data fee.TemplateConfig
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TemplateConfig")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	view, err := api.svc.ConfigureTemplate(ctx.Request().Context(), fid, bid, data)
	if err != nil {
		return errors.Wrap(err, "configuring template")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *feeApi) viewSchedule(ctx echo.Context) error {
	key, err := bindLedgerKey(ctx)
	if err != nil {
		return err
	}
	sched, err := api.svc.ViewSchedule(ctx.Request().Context(), key)
	if err != nil {
		return errors.Wrap(err, "viewing schedule")
	}
	return ctx.JSON(http.StatusOK, sched)
}

func (api *feeApi) editSchedule(ctx echo.Context) error {
	key, err := bindLedgerKey(ctx)
	if err != nil {
		return err
	}
	var data fee.ScheduleEdit
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScheduleEdit")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.EditSchedule(ctx.Request().Context(), key, data)
	if err != nil {
		return errors.Wrap(err, "editing schedule")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *feeApi) updatePayments(ctx echo.Context) error {
	key, err := bindLedgerKey(ctx)
	if err != nil {
		return err
	}
	var data fee.PaymentUpdates
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaymentUpdates")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sched, err := api.svc.UpdatePayments(ctx.Request().Context(), key, data.Updates)
	if err != nil {
		return errors.Wrap(err, "updating payments")
	}
	return ctx.JSON(http.StatusOK, sched)
}

func (api *feeApi) setEnrollment(ctx echo.Context) error {
	key, err := bindLedgerKey(ctx)
	if err != nil {
		return err
	}
	var data EnrollmentRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollmentRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	enrolled, err := api.svc.SetEnrollment(ctx.Request().Context(), key, *data.Enrolled)
	if err != nil {
		return errors.Wrap(err, "setting enrollment")
	}
	return ctx.JSON(http.StatusOK, EnrollmentResponse{Enrolled: enrolled})
}

func (api *feeApi) invoice(ctx echo.Context) error {
	key, err := bindLedgerKey(ctx)
	if err != nil {
		return err
	}
	inv, err := api.svc.Invoice(ctx.Request().Context(), key, ctx.Param("iid"))
	if err != nil {
		return errors.Wrap(err, "getting invoice")
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *feeApi) reminders(ctx echo.Context) error {
	rem, err := api.svc.Reminders(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing reminders")
	}
	return ctx.JSON(http.StatusOK, rem)
}

func (api *feeApi) revokeAccess(ctx echo.Context) error {
	var data RevokeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RevokeRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	if err := api.svc.RevokeAccess(ctx.Request().Context(), data.InstallmentID); err != nil {
		return errors.Wrap(err, "revoking access")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *feeApi) notifyUpcoming(ctx echo.Context) error {
	sent, err := api.svc.NotifyUpcoming(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "notifying upcoming installments")
	}
	return ctx.JSON(http.StatusOK, NotifyResponse{Sent: sent})
}
