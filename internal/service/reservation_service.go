package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go-gin-bus-reservation/config"
	"go-gin-bus-reservation/internal/confirmation"
	"go-gin-bus-reservation/internal/inventory"
	"go-gin-bus-reservation/internal/model"
	"go-gin-bus-reservation/internal/notify"
	"go-gin-bus-reservation/internal/payment"
	"go-gin-bus-reservation/internal/queue"
	"go-gin-bus-reservation/internal/seatmap"
	"go-gin-bus-reservation/internal/session"
	"go-gin-bus-reservation/internal/validation"
	apperrors "go-gin-bus-reservation/pkg/app_errors"
	"go-gin-bus-reservation/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 使用者通知文字
const (
	MsgSearching         = "Searching for available tickets..."
	MsgNoTickets         = "No tickets available for this route."
	MsgLookupTimeout     = "The ticket search took too long. Please try again."
	MsgLookupFailed      = "Unable to load tickets right now. Please try again."
	MsgTicketNotFound    = "This ticket is no longer in the search results."
	MsgFullyBooked       = "Sorry, this bus is fully booked!"
	MsgTicketSelected    = "Ticket selected! Redirecting..."
	MsgPassengerSaved    = "Passenger details saved. Please choose your seat."
	MsgSeatTaken         = "This seat is already taken. Please choose another one."
	MsgSeatUnknown       = "This seat does not exist on this bus."
	MsgNoSeatSelected    = "Please select a seat before proceeding to payment."
	MsgChooseMethod      = "Please choose a payment method (MTN or Orange)."
	MsgPaymentSuccessful = "Payment successful!"
	MsgPaymentTimeout    = "Payment is taking too long. Please try again."
	MsgPaymentFailed     = "Payment could not be completed. Please try again."
	MsgRefundCompleted   = "Refund completed! Money returned to wallet"
	MsgRefundTimeout     = "Refund is taking too long. Please try again."
	MsgStartOver         = "Please perform a search from the homepage."
	MsgSessionClosed     = "This reservation is closed. Please start a new search."
)

const receiptPublishTimeout = 2 * time.Second

type ReservationService interface {
	StartSession(ctx context.Context) (*model.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error)
	// 驗證搜尋條件並查詢庫存
	Search(ctx context.Context, id uuid.UUID, form model.SearchForm) (*model.Session, error)
	// 選擇票券；客滿時停留在 LISTING
	SelectTicket(ctx context.Context, id uuid.UUID, ticketID int) (*model.Session, error)
	// 驗證乘客資料並產生座位圖
	SubmitPassenger(ctx context.Context, id uuid.UUID, form model.PassengerForm) (*model.Session, error)
	SeatMap(ctx context.Context, id uuid.UUID) (*model.SeatMap, error)
	SelectSeat(ctx context.Context, id uuid.UUID, seatID string) (*model.Session, error)
	ProceedToPayment(ctx context.Context, id uuid.UUID) (*model.Session, error)
	Pay(ctx context.Context, id uuid.UUID, method model.PaymentMethod) (*model.Session, error)
	CancelAndRefund(ctx context.Context, id uuid.UUID) (*model.Session, error)
	Confirmation(ctx context.Context, id uuid.UUID) (*model.Confirmation, error)
	ConfirmationQR(ctx context.Context, id uuid.UUID, size int) ([]byte, error)
	ConfirmationPDF(ctx context.Context, id uuid.UUID) ([]byte, string, error)
}

type ReservationServiceImpl struct {
	store     session.Store
	inventory inventory.Inventory
	gateway   payment.Gateway
	notifier  notify.Notifier
	rng       seatmap.Rand
	// 可為 nil：不寄送電子票券
	receipts queue.ReceiptQueue

	lookupTimeout  time.Duration
	paymentTimeout time.Duration
	occupancyRate  float64

	// 同一 session 的操作依序執行；沒有進行中的呼叫時即移除
	locksMu sync.Mutex
	locks   map[uuid.UUID]*sessionLock
	now     func() time.Time
	log     *zap.Logger
}

func NewReservationService(
	store session.Store,
	inv inventory.Inventory,
	gateway payment.Gateway,
	notifier notify.Notifier,
	rng seatmap.Rand,
	receipts queue.ReceiptQueue,
	cfg config.WorkflowConfig,
) ReservationService {
	return &ReservationServiceImpl{
		store:          store,
		inventory:      inv,
		gateway:        gateway,
		notifier:       notifier,
		rng:            rng,
		receipts:       receipts,
		lookupTimeout:  cfg.LookupTimeout,
		paymentTimeout: cfg.PaymentTimeout,
		occupancyRate:  cfg.OccupancyRate,
		locks:          make(map[uuid.UUID]*sessionLock),
		now:            time.Now,
		log:            logger.WithComponent("reservation"),
	}
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (s *ReservationServiceImpl) lock(id uuid.UUID) func() {
	s.locksMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.locksMu.Unlock()
	}
}

func (s *ReservationServiceImpl) notify(ctx context.Context, level notify.Level, message string) {
	notify.Send(ctx, s.notifier, level, message)
}

// notifyError 驗證錯誤使用欄位專屬訊息，其餘使用 fallback
func (s *ReservationServiceImpl) notifyError(ctx context.Context, err error, fallback string) {
	var fe *validation.FieldError
	if errors.As(err, &fe) {
		s.notify(ctx, notify.LevelError, fe.Message)
		return
	}
	s.notify(ctx, notify.LevelError, fallback)
}

// transition 依狀態機前進一步
func (s *ReservationServiceImpl) transition(sess *model.Session, to model.Step) error {
	if !sess.Step.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, sess.Step, to)
	}
	sess.Step = to
	sess.UpdatedAt = s.now().UTC()
	return nil
}

// redirect 缺少前置資料時清空 session 並回到 SEARCHING
func (s *ReservationServiceImpl) redirect(ctx context.Context, sess *model.Session) (*model.Session, error) {
	s.log.Info("missing reservation context, redirecting to search",
		zap.String("session_id", sess.ID.String()),
		zap.String("step", string(sess.Step)),
	)
	sess.Step = model.StepSearching
	sess.Context = model.ReservationContext{}
	sess.Tickets = nil
	sess.SeatMap = nil
	sess.Transaction = nil
	sess.Confirmation = nil
	sess.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.notify(ctx, notify.LevelInfo, MsgStartOver)
	return sess, apperrors.ErrMissingContext
}

// load 讀取 session 並確認可以在 step 上操作
func (s *ReservationServiceImpl) load(ctx context.Context, id uuid.UUID, step model.Step) (*model.Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.IsTerminated() {
		s.notify(ctx, notify.LevelError, MsgSessionClosed)
		return sess, apperrors.ErrSessionTerminated
	}
	if !sess.Context.Satisfies(step) {
		return s.redirect(ctx, sess)
	}
	if sess.Step != step {
		return sess, fmt.Errorf("%w: %s is not allowed at %s", apperrors.ErrInvalidTransition, step, sess.Step)
	}
	return sess, nil
}

func (s *ReservationServiceImpl) StartSession(ctx context.Context) (*model.Session, error) {
	now := s.now().UTC()
	sess := &model.Session{
		ID:        uuid.New(),
		Step:      model.StepSearching,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	s.log.Info("reservation session started", zap.String("session_id", sess.ID.String()))
	return sess, nil
}

func (s *ReservationServiceImpl) GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return s.store.Get(ctx, id)
}

func (s *ReservationServiceImpl) Search(ctx context.Context, id uuid.UUID, form model.SearchForm) (*model.Session, error) {
	defer s.lock(id)()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.IsTerminated() {
		s.notify(ctx, notify.LevelError, MsgSessionClosed)
		return sess, apperrors.ErrSessionTerminated
	}

	criteria, err := validation.ValidateSearch(form, s.now())
	if err != nil {
		s.notifyError(ctx, err, err.Error())
		return sess, err
	}

	s.notify(ctx, notify.LevelInfo, MsgSearching)
	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	tickets, err := s.inventory.Search(lookupCtx, criteria.Route())
	cancel()
	if err != nil {
		// 查詢失敗時 session 保持原狀，使用者可重試
		if errors.Is(err, context.DeadlineExceeded) {
			s.log.Warn("inventory lookup timed out", zap.String("session_id", id.String()), zap.Duration("timeout", s.lookupTimeout))
			s.notify(ctx, notify.LevelError, MsgLookupTimeout)
			return sess, apperrors.ErrLookupTimeout
		}
		s.log.Error("inventory lookup failed", zap.String("session_id", id.String()), zap.Error(err))
		s.notify(ctx, notify.LevelError, MsgLookupFailed)
		return sess, fmt.Errorf("%w: %v", apperrors.ErrInventoryUnavailable, err)
	}

	if sess.Step != model.StepSearching {
		if err := s.transition(sess, model.StepSearching); err != nil {
			return sess, err
		}
	}
	if err := s.transition(sess, model.StepListing); err != nil {
		return sess, err
	}
	sess.Context = sess.Context.WithSearch(criteria)
	sess.Tickets = tickets
	sess.SeatMap = nil
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	if len(tickets) == 0 {
		s.notify(ctx, notify.LevelInfo, MsgNoTickets)
	}
	return sess, nil
}

func (s *ReservationServiceImpl) SelectTicket(ctx context.Context, id uuid.UUID, ticketID int) (*model.Session, error) {
	defer s.lock(id)()

	sess, err := s.load(ctx, id, model.StepListing)
	if err != nil {
		return sess, err
	}

	ticket, ok := sess.FindTicket(ticketID)
	if !ok {
		s.notify(ctx, notify.LevelError, MsgTicketNotFound)
		return sess, apperrors.ErrTicketNotFound
	}
	// 只讀取容量，不扣庫存
	if ticket.IsFullyBooked() {
		s.notify(ctx, notify.LevelError, MsgFullyBooked)
		return sess, apperrors.ErrTicketFullyBooked
	}

	if err := s.transition(sess, model.StepTicketSelected); err != nil {
		return sess, err
	}
	sess.Context = sess.Context.WithTicket(ticket)
	if err := s.transition(sess, model.StepPassengerForm); err != nil {
		return sess, err
	}
	sess.Tickets = nil
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	s.notify(ctx, notify.LevelSuccess, MsgTicketSelected)
	return sess, nil
}

func (s *ReservationServiceImpl) SubmitPassenger(ctx context.Context, id uuid.UUID, form model.PassengerForm) (*model.Session, error) {
	defer s.lock(id)()

	sess, err := s.load(ctx, id, model.StepPassengerForm)
	if err != nil {
		return sess, err
	}

	info, err := validation.ValidatePassenger(form)
	if err != nil {
		s.notifyError(ctx, err, err.Error())
		return sess, err
	}

	if err := s.transition(sess, model.StepSeatSelection); err != nil {
		return sess, err
	}
	sess.Context = sess.Context.WithPassenger(info)
	// 佔用座位只在進入選位步驟時抽樣一次
	m := seatmap.New(sess.Context.Ticket.Class, s.occupancyRate, s.rng)
	sess.SeatMap = &m
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	s.notify(ctx, notify.LevelSuccess, MsgPassengerSaved)
	return sess, nil
}

func (s *ReservationServiceImpl) SeatMap(ctx context.Context, id uuid.UUID) (*model.SeatMap, error) {
	defer s.lock(id)()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.SeatMap == nil || !sess.Context.Satisfies(model.StepSeatSelection) {
		if sess.IsTerminated() {
			return nil, apperrors.ErrSessionTerminated
		}
		_, err := s.redirect(ctx, sess)
		return nil, err
	}
	m := sess.SeatMap.Clone()
	return &m, nil
}

func (s *ReservationServiceImpl) SelectSeat(ctx context.Context, id uuid.UUID, seatID string) (*model.Session, error) {
	defer s.lock(id)()

	sess, err := s.load(ctx, id, model.StepSeatSelection)
	if err != nil {
		return sess, err
	}
	if sess.SeatMap == nil {
		return s.redirect(ctx, sess)
	}

	next, err := seatmap.SelectSeat(*sess.SeatMap, seatID)
	if err != nil {
		if errors.Is(err, apperrors.ErrSeatOccupied) {
			s.notify(ctx, notify.LevelError, MsgSeatTaken)
		} else {
			s.notify(ctx, notify.LevelError, MsgSeatUnknown)
		}
		return sess, err
	}

	sess.SeatMap = &next
	sess.Context = sess.Context.WithSeat(seatID)
	sess.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	s.notify(ctx, notify.LevelSuccess, fmt.Sprintf("Seat %s selected.", seatID))
	return sess, nil
}

func (s *ReservationServiceImpl) ProceedToPayment(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	defer s.lock(id)()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.IsTerminated() {
		s.notify(ctx, notify.LevelError, MsgSessionClosed)
		return sess, apperrors.ErrSessionTerminated
	}
	if !sess.Context.Satisfies(model.StepSeatSelection) {
		return s.redirect(ctx, sess)
	}
	if sess.Step != model.StepSeatSelection {
		return sess, fmt.Errorf("%w: cannot proceed to payment from %s", apperrors.ErrInvalidTransition, sess.Step)
	}
	if sess.Context.SeatID == "" {
		s.notify(ctx, notify.LevelError, MsgNoSeatSelected)
		return sess, apperrors.ErrNoSeatSelected
	}

	if err := s.transition(sess, model.StepPayment); err != nil {
		return sess, err
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *ReservationServiceImpl) Pay(ctx context.Context, id uuid.UUID, method model.PaymentMethod) (*model.Session, error) {
	defer s.lock(id)()

	sess, err := s.load(ctx, id, model.StepPayment)
	if err != nil {
		return sess, err
	}
	if !method.IsValid() {
		s.notify(ctx, notify.LevelError, MsgChooseMethod)
		return sess, apperrors.ErrInvalidPaymentMethod
	}

	chargeCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	tx, err := s.gateway.Charge(chargeCtx, payment.ChargeRequest{
		Method: method,
		Amount: sess.Context.Ticket.Price,
	})
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.log.Warn("payment timed out", zap.String("session_id", id.String()), zap.Duration("timeout", s.paymentTimeout))
			s.notify(ctx, notify.LevelError, MsgPaymentTimeout)
			return sess, apperrors.ErrPaymentTimeout
		}
		s.log.Error("payment failed", zap.String("session_id", id.String()), zap.Error(err))
		s.notify(ctx, notify.LevelError, MsgPaymentFailed)
		return sess, err
	}

	// 付款完成後才產生確認憑證
	conf, err := confirmation.Build(sess.Context, *tx)
	if err != nil {
		return sess, err
	}
	if err := s.transition(sess, model.StepConfirmed); err != nil {
		return sess, err
	}
	sess.Transaction = tx
	sess.Confirmation = &conf
	sess.SeatMap = nil
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	s.log.Info("payment confirmed",
		zap.String("session_id", id.String()),
		zap.String("transaction_id", tx.ID),
		zap.String("method", string(method)),
		zap.Int("amount", tx.Amount),
	)
	s.notify(ctx, notify.LevelSuccess, MsgPaymentSuccessful)
	s.publishReceipt(ctx, sess)
	return sess, nil
}

// publishReceipt 寄送電子票券失敗不影響付款結果
func (s *ReservationServiceImpl) publishReceipt(ctx context.Context, sess *model.Session) {
	if s.receipts == nil {
		return
	}
	receipt := &model.Receipt{
		SessionID:    sess.ID,
		Email:        sess.Context.Passenger.Email,
		Transaction:  *sess.Transaction,
		Confirmation: *sess.Confirmation,
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), receiptPublishTimeout)
	defer cancel()
	if err := s.receipts.PublishReceipt(pubCtx, receipt); err != nil {
		s.log.Warn("publish receipt failed", zap.String("session_id", sess.ID.String()), zap.Error(err))
	}
}

func (s *ReservationServiceImpl) CancelAndRefund(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	defer s.lock(id)()

	sess, err := s.load(ctx, id, model.StepPayment)
	if err != nil {
		return sess, err
	}

	refundCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	tx, err := s.gateway.Refund(refundCtx, payment.RefundRequest{Amount: sess.Context.Ticket.Price})
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.log.Warn("refund timed out", zap.String("session_id", id.String()), zap.Duration("timeout", s.paymentTimeout))
			s.notify(ctx, notify.LevelError, MsgRefundTimeout)
			return sess, apperrors.ErrRefundTimeout
		}
		s.log.Error("refund failed", zap.String("session_id", id.String()), zap.Error(err))
		return sess, err
	}

	if err := s.transition(sess, model.StepCancelled); err != nil {
		return sess, err
	}
	sess.Transaction = tx
	sess.SeatMap = nil
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	s.log.Info("reservation cancelled", zap.String("session_id", id.String()), zap.String("transaction_id", tx.ID))
	s.notify(ctx, notify.LevelSuccess, MsgRefundCompleted)
	return sess, nil
}

func (s *ReservationServiceImpl) Confirmation(ctx context.Context, id uuid.UUID) (*model.Confirmation, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Step != model.StepConfirmed || sess.Confirmation == nil {
		return nil, apperrors.ErrConfirmationNotSet
	}
	return sess.Confirmation, nil
}

func (s *ReservationServiceImpl) ConfirmationQR(ctx context.Context, id uuid.UUID, size int) ([]byte, error) {
	c, err := s.Confirmation(ctx, id)
	if err != nil {
		return nil, err
	}
	return confirmation.QRCodePNG(*c, size)
}

func (s *ReservationServiceImpl) ConfirmationPDF(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	c, err := s.Confirmation(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return confirmation.ETicketPDF(*c)
}
