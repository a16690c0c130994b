package booking

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/propflow/propflow/internal/platform/httpx"
	"github.com/propflow/propflow/internal/shared"
)

const dateLayout = "2006-01-02"

// Handler wires the booking engine's HTTP endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency *shared.IdempotencyStore
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance. The idempotency store may be
// nil; creation then offers no duplicate-request protection.
func NewHandler(logger *slog.Logger, service *Service, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		idempotency: idempotency,
		validator:   validator.New(),
	}
}

// MountRoutes registers booking routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/bookings", h.createBooking)
	r.Get("/bookings/{bookingID}", h.getBooking)
	r.Get("/bookings/{bookingID}/schedule", h.getSchedule)
	r.Post("/bookings/{bookingID}/payments", h.recordPayment)
	r.Post("/bookings/{bookingID}/status", h.changeStatus)
}

type createBookingRequest struct {
	PropertyID            string  `json:"propertyId" validate:"required"`
	CustomerID            string  `json:"customerId" validate:"required"`
	AssignedSalespersonID string  `json:"assignedSalespersonId" validate:"required"`
	StartDate             string  `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate               string  `json:"endDate" validate:"required,datetime=2006-01-02"`
	MonthlyRent           int64   `json:"monthlyRent" validate:"min=0"`
	SecurityDeposit       int64   `json:"securityDeposit" validate:"min=0"`
	MaintenanceCharges    int64   `json:"maintenanceCharges" validate:"min=0"`
	AdvanceRent           int     `json:"advanceRent" validate:"min=0"`
	RentDueDate           int     `json:"rentDueDate" validate:"min=1,max=31"`
	LateFeePercentage     float64 `json:"lateFeePercentage" validate:"min=0"`
	CreatedBy             string  `json:"createdBy" validate:"required"`
}

type paymentRequest struct {
	SequenceNumber int    `json:"sequenceNumber" validate:"min=1"`
	Amount         int64  `json:"amount" validate:"required,gt=0"`
	PaidDate       string `json:"paidDate" validate:"required,datetime=2006-01-02"`
}

type statusRequest struct {
	Trigger string `json:"trigger" validate:"required"`
}

func (h *Handler) createBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	start, _ := time.Parse(dateLayout, req.StartDate)
	end, _ := time.Parse(dateLayout, req.EndDate)

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), idemKey, "booking"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate Request", "this idempotency key was already processed")
				return
			}
			h.logger.Error("idempotency check", slog.Any("error", err))
			httpx.Problem(w, http.StatusServiceUnavailable, "Storage Unavailable", "")
			return
		}
	}

	b, err := h.service.CreateBooking(r.Context(), LeaseTerms{
		PropertyID:            req.PropertyID,
		CustomerID:            req.CustomerID,
		AssignedSalespersonID: req.AssignedSalespersonID,
		StartDate:             start,
		EndDate:               end,
		MonthlyRent:           req.MonthlyRent,
		SecurityDeposit:       req.SecurityDeposit,
		MaintenanceCharges:    req.MaintenanceCharges,
		AdvanceRent:           req.AdvanceRent,
		RentDueDate:           req.RentDueDate,
		LateFeePercentage:     req.LateFeePercentage,
		CreatedBy:             req.CreatedBy,
	})
	if err != nil {
		if idemKey != "" && h.idempotency != nil {
			// Free the key so the client may retry the failed request.
			if delErr := h.idempotency.Delete(r.Context(), idemKey); delErr != nil {
				h.logger.Warn("idempotency rollback", slog.Any("error", delErr))
			}
		}
		h.respondError(w, "create booking", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bookingJSON(b))
}

func (h *Handler) getBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.GetBooking(r.Context(), chi.URLParam(r, "bookingID"))
	if err != nil {
		h.respondError(w, "get booking", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bookingJSON(b))
}

func (h *Handler) getSchedule(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")
	entries, err := h.service.GetSchedule(r.Context(), bookingID)
	if err != nil {
		h.respondError(w, "get schedule", err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, entryJSON(&entries[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"bookingId":    bookingID,
		"rentSchedule": out,
	})
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	paidDate, _ := time.Parse(dateLayout, req.PaidDate)

	entry, err := h.service.RecordPayment(r.Context(), chi.URLParam(r, "bookingID"), req.SequenceNumber, req.Amount, paidDate)
	if err != nil {
		h.respondError(w, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entryJSON(entry))
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	trigger, err := ParseTrigger(req.Trigger)
	if err != nil {
		h.respondError(w, "change status", err)
		return
	}
	status, err := h.service.ChangeStatus(r.Context(), chi.URLParam(r, "bookingID"), trigger)
	if err != nil {
		h.respondError(w, "change status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bookingStatus": status})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	var stateErr *StateError
	switch {
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrReferential):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Reference", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &stateErr):
		httpx.Problem(w, http.StatusConflict, "Invalid State", stateErr.Error())
	case errors.Is(err, ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrPersistence):
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Storage Unavailable", "the operation may be retried")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

type bookingResponse struct {
	BookingID             string          `json:"bookingId"`
	PropertyID            string          `json:"propertyId"`
	CustomerID            string          `json:"customerId"`
	AssignedSalespersonID string          `json:"assignedSalespersonId"`
	StartDate             string          `json:"startDate"`
	EndDate               string          `json:"endDate"`
	MonthlyRent           int64           `json:"monthlyRent"`
	SecurityDeposit       int64           `json:"securityDeposit"`
	MaintenanceCharges    int64           `json:"maintenanceCharges"`
	AdvanceRent           int             `json:"advanceRent"`
	RentDueDate           int             `json:"rentDueDate"`
	LateFeePercentage     float64         `json:"lateFeePercentage"`
	Duration              int             `json:"duration"`
	BookingStatus         BookingStatus   `json:"bookingStatus"`
	IsActive              bool            `json:"isActive"`
	RentSchedule          []entryResponse `json:"rentSchedule"`
	CreatedBy             string          `json:"createdByUserId"`
	UpdatedBy             string          `json:"updatedByUserId"`
	Published             bool            `json:"published"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

type entryResponse struct {
	SequenceNumber int           `json:"sequenceNumber"`
	DueDate        string        `json:"dueDate"`
	AmountDue      int64         `json:"amountDue"`
	AmountPaid     int64         `json:"amountPaid"`
	PaidDate       *string       `json:"paidDate"`
	LateFeeApplied int64         `json:"lateFeeApplied"`
	PaymentStatus  PaymentStatus `json:"paymentStatus"`
}

func bookingJSON(b *RentalBooking) bookingResponse {
	entries := make([]entryResponse, 0, len(b.Schedule))
	for i := range b.Schedule {
		entries = append(entries, entryJSON(&b.Schedule[i]))
	}
	return bookingResponse{
		BookingID:             b.BookingID,
		PropertyID:            b.PropertyID,
		CustomerID:            b.CustomerID,
		AssignedSalespersonID: b.AssignedSalespersonID,
		StartDate:             b.StartDate.Format(dateLayout),
		EndDate:               b.EndDate.Format(dateLayout),
		MonthlyRent:           b.MonthlyRent,
		SecurityDeposit:       b.SecurityDeposit,
		MaintenanceCharges:    b.MaintenanceCharges,
		AdvanceRent:           b.AdvanceRent,
		RentDueDate:           b.RentDueDate,
		LateFeePercentage:     b.LateFeePercentage,
		Duration:              b.Duration,
		BookingStatus:         b.Status,
		IsActive:              b.IsActive(),
		RentSchedule:          entries,
		CreatedBy:             b.CreatedBy,
		UpdatedBy:             b.UpdatedBy,
		Published:             b.Published,
		CreatedAt:             b.CreatedAt,
		UpdatedAt:             b.UpdatedAt,
	}
}

func entryJSON(e *RentScheduleEntry) entryResponse {
	resp := entryResponse{
		SequenceNumber: e.SequenceNumber,
		DueDate:        e.DueDate.Format(dateLayout),
		AmountDue:      e.AmountDue,
		AmountPaid:     e.AmountPaid,
		LateFeeApplied: e.LateFeeApplied,
		PaymentStatus:  e.PaymentStatus,
	}
	if e.PaidDate != nil {
		paid := e.PaidDate.Format(dateLayout)
		resp.PaidDate = &paid
	}
	return resp
}
