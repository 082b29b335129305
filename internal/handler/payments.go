package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dvaldes/gradgala/internal/config"
	"github.com/dvaldes/gradgala/internal/gateway"
	"github.com/dvaldes/gradgala/internal/model"
	"github.com/dvaldes/gradgala/internal/queue"
	"github.com/dvaldes/gradgala/internal/repository"
	queue_publisher "github.com/dvaldes/gradgala/internal/service"
)

// PaymentsHandler serves installment charges through the payment gateway and
// the webhook that settles them.  Settlement is idempotent: a charge marks
// its payment paid at most once, no matter how many webhook deliveries or
// redundant card confirmations arrive.
type PaymentsHandler struct {
	Payments  *repository.PaymentRepo
	Graduates *repository.GraduateRepo
	Events    *repository.EventRepo
	Tickets   *repository.TicketRepo
	Gateway   *gateway.OpenpayClient
	Cfg       config.Config
}

func NewPaymentsHandler(payments *repository.PaymentRepo, graduates *repository.GraduateRepo, events *repository.EventRepo, tickets *repository.TicketRepo, gw *gateway.OpenpayClient, cfg config.Config) *PaymentsHandler {
	if payments == nil || graduates == nil || events == nil || tickets == nil || gw == nil {
		panic("nil dependency passed to NewPaymentsHandler")
	}
	return &PaymentsHandler{Payments: payments, Graduates: graduates, Events: events, Tickets: tickets, Gateway: gw, Cfg: cfg}
}

type createChargeRequest struct {
	PaymentMethod string  `json:"payment_method" validate:"required,oneof=card bank_account store"`
	PaymentType   string  `json:"payment_type" validate:"required,oneof=initial monthly"`
	Token         string  `json:"token"`
	MonthNumber   *uint32 `json:"month_number" validate:"omitempty,min=1"`
}

// CreateCharge handles POST /v1/graduates/me/payments/charge.  The amount is
// computed server-side, never taken from the client: the initial payment from
// the event, a monthly installment as the remainder split over the plan.
// Card charges settle immediately on gateway success; bank and store charges
// stay pending until the webhook confirms the deposit.
func (h *PaymentsHandler) CreateCharge(c echo.Context) error {
	graduateID, err := getGraduateID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req createChargeRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	g, err := h.Graduates.GetByID(ctx, graduateID)
	if err != nil {
		return internalError(c)
	}
	order, err := h.Tickets.GetByGraduate(ctx, graduateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apiError(c, http.StatusBadRequest, kindPreconditionFailed, "no tickets found")
		}
		return internalError(c)
	}
	event, err := h.Events.GetByID(ctx, g.EventID)
	if err != nil {
		return internalError(c)
	}

	var amount uint64
	var description string
	var monthNumber *uint32

	switch req.PaymentType {
	case model.PaymentInitial:
		paid, err := h.Payments.HasPaid(ctx, graduateID, model.PaymentInitial, nil)
		if err != nil {
			return internalError(c)
		}
		if paid {
			return apiError(c, http.StatusBadRequest, kindBadRequest, "initial payment already made")
		}
		amount = event.InitialPaymentCents
		description = fmt.Sprintf("Pago inicial - %s", event.Name)
	case model.PaymentMonthly:
		if req.MonthNumber == nil {
			return apiError(c, http.StatusBadRequest, kindBadRequest, "month_number is required for monthly payments")
		}
		if *req.MonthNumber > event.MonthsDuration {
			return apiError(c, http.StatusBadRequest, kindBadRequest, "month_number exceeds the payment plan")
		}
		initialPaid, err := h.Payments.HasPaid(ctx, graduateID, model.PaymentInitial, nil)
		if err != nil {
			return internalError(c)
		}
		if !initialPaid {
			return apiError(c, http.StatusBadRequest, kindPreconditionFailed, "initial payment must be made first")
		}
		monthPaid, err := h.Payments.HasPaid(ctx, graduateID, model.PaymentMonthly, req.MonthNumber)
		if err != nil {
			return internalError(c)
		}
		if monthPaid {
			return apiError(c, http.StatusBadRequest, kindBadRequest,
				fmt.Sprintf("month %d already paid", *req.MonthNumber))
		}
		remaining := int64(order.TotalAmountCents) - int64(event.InitialPaymentCents)
		if remaining < 0 {
			remaining = 0
		}
		amount = ceilDiv(uint64(remaining), uint64(event.MonthsDuration))
		monthNumber = req.MonthNumber
		description = fmt.Sprintf("Mensualidad %d/%d - %s", *req.MonthNumber, event.MonthsDuration, event.Name)
	}

	if req.PaymentMethod == "card" && req.Token == "" {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "token is required for card payments")
	}

	payment := &model.Payment{
		GraduateID:  graduateID,
		AmountCents: amount,
		Type:        req.PaymentType,
		Status:      model.PaymentPending,
		MonthNumber: monthNumber,
	}
	if err := h.Payments.Create(ctx, payment); err != nil {
		return internalError(c)
	}

	charge, err := h.Gateway.CreateCharge(ctx, req.PaymentMethod, uint32(amount), description,
		strconv.FormatUint(payment.ID, 10),
		gateway.Customer{Name: g.FullName, Email: g.Email, PhoneNumber: g.Phone},
		req.Token)
	if err != nil {
		_ = h.Payments.MarkFailed(ctx, payment.ID)
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) {
			return apiError(c, http.StatusBadRequest, kindBadRequest, apiErr.Description)
		}
		return apiError(c, http.StatusBadRequest, kindBadRequest, "payment processing failed")
	}

	if err := h.Payments.SetGatewayTxID(ctx, payment.ID, charge.ID); err != nil {
		return internalError(c)
	}

	// Card charges complete synchronously.
	if charge.Status == "completed" {
		if _, err := h.settle(ctx, payment.ID); err != nil {
			return internalError(c)
		}
	}

	resp := echo.Map{
		"payment_id":     payment.ID,
		"gateway_tx_id":  charge.ID,
		"amount":         amount,
		"status":         charge.Status,
		"payment_method": req.PaymentMethod,
	}
	if charge.PaymentMethod != nil {
		switch req.PaymentMethod {
		case "bank_account":
			resp["payment_method_data"] = echo.Map{
				"clabe":     charge.PaymentMethod.Clabe,
				"bank_name": charge.PaymentMethod.BankName,
			}
		case "store":
			resp["payment_method_data"] = echo.Map{
				"reference":   charge.PaymentMethod.Reference,
				"barcode_url": charge.PaymentMethod.BarcodeURL,
			}
		}
	}
	return c.JSON(http.StatusCreated, resp)
}

// settle marks a payment paid (at most once), recomputes payment progress and
// advances the graduate's payments and thermo steps.  Returns the progress
// percent after settlement.
func (h *PaymentsHandler) settle(ctx context.Context, paymentID uint64) (int, error) {
	payment, err := h.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return 0, err
	}

	changed, err := h.Payments.MarkPaid(ctx, paymentID)
	if err != nil {
		return 0, err
	}

	g, err := h.Graduates.GetByID(ctx, payment.GraduateID)
	if err != nil {
		return 0, err
	}
	event, err := h.Events.GetByID(ctx, g.EventID)
	if err != nil {
		return 0, err
	}

	total := uint64(0)
	if order, err := h.Tickets.GetByGraduate(ctx, payment.GraduateID); err == nil {
		total = order.TotalAmountCents
	} else if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	paid, err := h.Payments.SumPaidByGraduate(ctx, payment.GraduateID)
	if err != nil {
		return 0, err
	}
	percent := 0
	if total > 0 {
		percent = int((paid*100 + total/2) / total)
	}

	step := model.StepInProgress
	if percent >= 100 {
		step = model.StepCompleted
	}
	unlockThermo := percent >= int(event.ThermoThreshold)
	if err := h.Graduates.SetPaymentProgress(ctx, payment.GraduateID, step, unlockThermo); err != nil {
		return 0, err
	}

	if changed {
		txID := ""
		if payment.GatewayTxID != nil {
			txID = *payment.GatewayTxID
		}
		month := uint32(0)
		if payment.MonthNumber != nil {
			month = *payment.MonthNumber
		}
		_ = queue_publisher.PublishPaymentSucceeded(ctx, queue.PaymentSucceededEvent{
			PaymentID:   payment.ID,
			GraduateID:  payment.GraduateID,
			EventID:     g.EventID,
			Type:        payment.Type,
			AmountCents: uint32(payment.AmountCents),
			MonthNumber: month,
			GatewayTxID: txID,
			PaidAt:      time.Now().UTC().Format(time.RFC3339),
		})
	}
	return percent, nil
}

// webhookEvent is the envelope the gateway posts to the webhook endpoint.
type webhookEvent struct {
	Type        string `json:"type"`
	Transaction struct {
		ID string `json:"id"`
	} `json:"transaction"`
}

// Webhook handles POST /v1/webhooks/openpay.  The raw body is verified
// against the X-Openpay-Signature header before anything is parsed.
// charge.succeeded settles the referenced payment; charge.failed marks it
// failed; all other event types acknowledge without side effects.
func (h *PaymentsHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "unreadable body")
	}
	signature := c.Request().Header.Get("X-Openpay-Signature")
	if !gateway.VerifyWebhookSignature(h.Cfg.OpenpayWebhookKey, body, signature) {
		return apiError(c, http.StatusUnauthorized, kindUnauthorized, "invalid webhook signature")
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid webhook payload")
	}

	ctx := c.Request().Context()
	switch ev.Type {
	case "charge.succeeded":
		payment, err := h.Payments.GetByGatewayTxID(ctx, ev.Transaction.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return c.JSON(http.StatusOK, echo.Map{"success": false, "message": "payment not found"})
			}
			return internalError(c)
		}
		if payment.Status == model.PaymentPaid {
			return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "already processed"})
		}
		percent, err := h.settle(ctx, payment.ID)
		if err != nil {
			return internalError(c)
		}
		return c.JSON(http.StatusOK, echo.Map{"success": true, "progress_percent": percent})
	case "charge.failed":
		payment, err := h.Payments.GetByGatewayTxID(ctx, ev.Transaction.ID)
		if err == nil {
			if err := h.Payments.MarkFailed(ctx, payment.ID); err != nil {
				return internalError(c)
			}
		} else if !errors.Is(err, sql.ErrNoRows) {
			return internalError(c)
		}
		return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "payment marked as failed"})
	default:
		return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "event processed"})
	}
}

// Summary handles GET /v1/graduates/me/payments/summary.
func (h *PaymentsHandler) Summary(c echo.Context) error {
	graduateID, err := getGraduateID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx := c.Request().Context()

	g, err := h.Graduates.GetByID(ctx, graduateID)
	if err != nil {
		return internalError(c)
	}
	event, err := h.Events.GetByID(ctx, g.EventID)
	if err != nil {
		return internalError(c)
	}

	total := uint64(0)
	if order, err := h.Tickets.GetByGraduate(ctx, graduateID); err == nil {
		total = order.TotalAmountCents
	} else if !errors.Is(err, sql.ErrNoRows) {
		return internalError(c)
	}
	paid, err := h.Payments.SumPaidByGraduate(ctx, graduateID)
	if err != nil {
		return internalError(c)
	}
	_, paidMonthly, err := h.Payments.CountPaidByGraduate(ctx, graduateID)
	if err != nil {
		return internalError(c)
	}
	hasInitial, err := h.Payments.HasPaid(ctx, graduateID, model.PaymentInitial, nil)
	if err != nil {
		return internalError(c)
	}

	pending := int64(total) - int64(paid)
	if pending < 0 {
		pending = 0
	}
	percent := 0
	if total > 0 {
		percent = int((paid*100 + total/2) / total)
	}
	remaining := int64(total) - int64(event.InitialPaymentCents)
	if remaining < 0 {
		remaining = 0
	}
	monthly := ceilDiv(uint64(remaining), uint64(event.MonthsDuration))

	var nextMonth *int
	if n := paidMonthly + 1; n <= int(event.MonthsDuration) {
		nextMonth = &n
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_amount":        total,
		"paid_amount":         paid,
		"pending_amount":      pending,
		"progress_percent":    percent,
		"initial_payment":     event.InitialPaymentCents,
		"monthly_payment":     monthly,
		"has_initial_payment": hasInitial,
		"next_month":          nextMonth,
		"months_duration":     event.MonthsDuration,
		"thermo_unlocked":     percent >= int(event.ThermoThreshold),
		"thermo_threshold":    event.ThermoThreshold,
	})
}

// History handles GET /v1/graduates/me/payments/history.
func (h *PaymentsHandler) History(c echo.Context) error {
	graduateID, err := getGraduateID(c)
	if err != nil {
		return unauthorized(c)
	}
	payments, err := h.Payments.ListByGraduate(c.Request().Context(), graduateID)
	if err != nil {
		return internalError(c)
	}

	type paymentView struct {
		ID          uint64  `json:"id"`
		Amount      uint64  `json:"amount"`
		Type        string  `json:"type"`
		Status      string  `json:"status"`
		MonthNumber *uint32 `json:"month_number"`
		PaymentDate *string `json:"payment_date"`
		CreatedAt   string  `json:"created_at"`
		GatewayTxID *string `json:"gateway_tx_id"`
	}
	views := make([]paymentView, 0, len(payments))
	for _, p := range payments {
		v := paymentView{
			ID:          p.ID,
			Amount:      p.AmountCents,
			Type:        p.Type,
			Status:      p.Status,
			MonthNumber: p.MonthNumber,
			CreatedAt:   p.CreatedAt.Format(time.RFC3339),
			GatewayTxID: p.GatewayTxID,
		}
		if p.PaymentDate != nil {
			s := p.PaymentDate.Format(time.RFC3339)
			v.PaymentDate = &s
		}
		views = append(views, v)
	}
	return c.JSON(http.StatusOK, views)
}

// Config handles GET /v1/payments/config: the public credentials the browser
// needs to tokenize cards.
func (h *PaymentsHandler) Config(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"merchant_id": h.Cfg.OpenpayMerchantID,
		"public_key":  h.Cfg.OpenpayPublicKey,
	})
}
