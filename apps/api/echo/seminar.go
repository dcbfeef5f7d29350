package echoapi

import (
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/semina/core"
	"github.com/trezcool/semina/core/seminar"
)

type seminarApi struct {
	conf       *core.Config
	svc        *seminar.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerSeminarAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := seminarApi{
		conf:       deps.Conf,
		svc:        deps.SeminarSvc,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	sg := g.Group("/seminar")

	// scheduler callback; guarded by a shared secret, not a student token
	sg.POST("/run-selection", api.runSelection, cronSecretMiddleware(deps.Conf))

	// authed endpoints
	ag := sg.Group("", jwt)
	ag.GET("/window", api.window)
	ag.POST("/bookings", api.book)
	ag.GET("/bookings", api.queryBookings)
	ag.GET("/selections", api.querySelections)

	hg := g.Group("/holidays", jwt)
	hg.GET("", api.queryHolidays)
	hg.POST("", api.createHoliday, adminMiddleware())
	hg.DELETE("/:id", api.destroyHoliday, adminMiddleware())

	g.GET("/students/:id/fines", api.queryStudentFines, jwt)

	fg := g.Group("/admin/fines", jwt, adminMiddleware())
	fg.POST("", api.createFine)
	fg.PATCH("/:id", api.updateFineStatus)
}

// Handlers

func (api *seminarApi) runSelection(ctx echo.Context) error {
	res, err := api.svc.RunDailySelection(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "running daily selection")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *seminarApi) window(ctx echo.Context) error {
	info := api.svc.WindowInfo()
	resp := WindowResponse{
		IsOpen:        info.IsOpen,
		SelectionTime: info.SelectionTime,
	}
	if info.IsOpen {
		resp.TimeUntilClose = seminar.FormatTimeRemaining(info.TimeUntilClose)
		resp.TimeUntilSelection = seminar.FormatTimeRemaining(info.TimeUntilSelection)
	} else {
		resp.TimeUntilOpen = seminar.FormatTimeRemaining(info.TimeUntilOpen)
		resp.NextOpenTime = info.NextOpenTime
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *seminarApi) book(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data BookingRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BookingRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	booking, err := api.svc.BookSeminar(ctx.Request().Context(), claims.Subject, data.Topic)
	if err != nil {
		return errors.Wrap(err, "booking seminar")
	}
	return ctx.JSON(http.StatusCreated, booking)
}

// queryBookings lists all bookings for a date for admins; a student gets
// their own booking for that date.
func (api *seminarApi) queryBookings(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	date, err := api.bindDate(ctx)
	if err != nil {
		return err
	}

	if !claims.IsAdmin {
		booking, err := api.svc.StudentBooking(ctx.Request().Context(), claims.Subject, date)
		if err != nil {
			return errors.Wrap(err, "querying booking")
		}
		return ctx.JSON(http.StatusOK, booking)
	}

	bookings, err := api.svc.BookingsForDate(ctx.Request().Context(), date)
	if err != nil {
		return errors.Wrap(err, "querying bookings")
	}
	return ctx.JSON(http.StatusOK, bookings)
}

func (api *seminarApi) querySelections(ctx echo.Context) error {
	date, err := api.bindDate(ctx)
	if err != nil {
		return err
	}
	selections, err := api.svc.SelectionsForDate(ctx.Request().Context(), date)
	if err != nil {
		return errors.Wrap(err, "querying selections")
	}
	return ctx.JSON(http.StatusOK, SelectionsResponse{
		Date:       seminar.FormatDate(date),
		Selections: selections,
		Count:      len(selections),
		Exists:     len(selections) > 0,
	})
}

func (api *seminarApi) queryHolidays(ctx echo.Context) error {
	from := seminar.Date(api.svc.Now())
	to := from.AddDate(1, 0, 0)
	if s := ctx.QueryParam("from"); s != "" {
		d, err := seminar.ParseDate(s)
		if err != nil {
			return core.NewValidationError(errors.New("from: must be a date in YYYY-MM-DD format"))
		}
		from = d
	}
	if s := ctx.QueryParam("to"); s != "" {
		d, err := seminar.ParseDate(s)
		if err != nil {
			return core.NewValidationError(errors.New("to: must be a date in YYYY-MM-DD format"))
		}
		to = d
	}

	holidays, err := api.svc.Holidays(ctx.Request().Context(), from, to)
	if err != nil {
		return errors.Wrap(err, "querying holidays")
	}
	return ctx.JSON(http.StatusOK, holidays)
}

func (api *seminarApi) createHoliday(ctx echo.Context) error {
	var data HolidayRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to HolidayRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	date, _ := seminar.ParseDate(data.Date)
	affects := true
	if data.AffectsSeminars != nil {
		affects = *data.AffectsSeminars
	}
	holiday, err := api.svc.AddHoliday(ctx.Request().Context(), date, data.Name, data.Type, affects)
	if err != nil {
		return errors.Wrap(err, "creating holiday")
	}
	return ctx.JSON(http.StatusCreated, holiday)
}

func (api *seminarApi) destroyHoliday(ctx echo.Context) error {
	if err := api.svc.RemoveHoliday(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting holiday")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *seminarApi) queryStudentFines(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	// students can only see their own fines
	id := ctx.Param("id")
	if id != claims.Subject && !claims.IsAdmin {
		return errHttpNotFound
	}

	fines, err := api.svc.StudentFines(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "querying fines")
	}

	var pending float64
	for _, f := range fines {
		if f.PaymentStatus == seminar.PaymentPending {
			pending += f.BaseAmount
		}
	}
	return ctx.JSON(http.StatusOK, FinesResponse{Fines: fines, TotalPending: pending})
}

func (api *seminarApi) createFine(ctx echo.Context) error {
	var data FineRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FineRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	refDate, _ := seminar.ParseDate(data.ReferenceDate)
	fine, err := api.svc.CreateManualFine(
		ctx.Request().Context(),
		data.StudentID, seminar.FineType(data.FineType), refDate, data.Amount, data.Description,
	)
	if err != nil {
		return errors.Wrap(err, "creating fine")
	}
	return ctx.JSON(http.StatusCreated, fine)
}

func (api *seminarApi) updateFineStatus(ctx echo.Context) error {
	var data FineStatusRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FineStatusRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	fine, err := api.svc.UpdateFineStatus(ctx.Request().Context(), ctx.Param("id"), seminar.PaymentStatus(data.Status))
	if err != nil {
		return errors.Wrap(err, "updating fine")
	}
	return ctx.JSON(http.StatusOK, fine)
}

// bindDate reads the "date" query param, defaulting to the next seminar date
// in the seminar timezone.
func (api *seminarApi) bindDate(ctx echo.Context) (time.Time, error) {
	s := ctx.QueryParam("date")
	if s == "" {
		return api.svc.Timing().NextSeminarDate(api.svc.Now()), nil
	}
	date, err := seminar.ParseDate(s)
	if err != nil {
		return time.Time{}, core.NewValidationError(errors.New("date: must be a date in YYYY-MM-DD format"))
	}
	return date, nil
}

type (
	BookingRequest struct {
		Topic string `json:"topic"`
	}

	HolidayRequest struct {
		Date            string `json:"date" validate:"required,dateonly"`
		Name            string `json:"name" validate:"required"`
		Type            string `json:"type"`
		AffectsSeminars *bool  `json:"affects_seminars"`
	}

	FineRequest struct {
		StudentID     string  `json:"student_id" validate:"required"`
		FineType      string  `json:"fine_type" validate:"required,oneof=seminar_no_booking assignment_late attendance_absent other"`
		ReferenceDate string  `json:"reference_date" validate:"required,dateonly"`
		Amount        float64 `json:"amount"`
		Description   string  `json:"description"`
	}

	FineStatusRequest struct {
		Status string `json:"status" validate:"required,oneof=pending paid waived"`
	}

	FinesResponse struct {
		Fines        []seminar.Fine `json:"fines"`
		TotalPending float64        `json:"total_pending"`
	}

	SelectionsResponse struct {
		Date       string              `json:"date"`
		Selections []seminar.Selection `json:"selections"`
		Count      int                 `json:"count"`
		Exists     bool                `json:"exists"`
	}

	WindowResponse struct {
		IsOpen             bool      `json:"is_open"`
		TimeUntilClose     string    `json:"time_until_close,omitempty"`
		TimeUntilSelection string    `json:"time_until_selection,omitempty"`
		TimeUntilOpen      string    `json:"time_until_open,omitempty"`
		NextOpenTime       time.Time `json:"next_open_time,omitempty"`
		SelectionTime      time.Time `json:"selection_time"`
	}
)

func (br *BookingRequest) Validate(validate *validator.Validate) error {
	br.Topic = core.CleanString(br.Topic)
	return validate.Struct(br)
}

func (hr *HolidayRequest) Validate(validate *validator.Validate) error {
	hr.Name = core.CleanString(hr.Name)
	if hr.Type == "" {
		hr.Type = "college"
	}
	return validate.Struct(hr)
}

func (fr *FineRequest) Validate(validate *validator.Validate) error {
	fr.Description = core.CleanString(fr.Description)
	return validate.Struct(fr)
}

func (fs *FineStatusRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(fs)
}
