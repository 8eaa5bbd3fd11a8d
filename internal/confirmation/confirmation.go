// Package confirmation 產生付款成功後的確認憑證，以及 QR code 與 PDF 電子票券。
package confirmation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go-gin-bus-reservation/internal/model"
	apperrors "go-gin-bus-reservation/pkg/app_errors"
	"go-gin-bus-reservation/pkg/logger"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// DefaultQRSize QR code 邊長（像素）
const DefaultQRSize = 256

// Build 由完整的訂位資料與已確認交易組出確認憑證
func Build(rc model.ReservationContext, tx model.Transaction) (model.Confirmation, error) {
	if !rc.Satisfies(model.StepConfirmed) {
		return model.Confirmation{}, apperrors.ErrMissingContext
	}
	return model.Confirmation{
		Name:          rc.Passenger.FullName(),
		Departure:     rc.Search.Departure,
		Destination:   rc.Search.Destination,
		Date:          rc.Search.Date,
		Carrier:       rc.Ticket.Carrier,
		Time:          rc.Search.DepartureTime,
		Price:         rc.Ticket.Price,
		Class:         rc.Ticket.Class,
		Seat:          rc.SeatID,
		TransactionID: tx.ID,
	}, nil
}

// Payload QR code 內容（JSON）
func Payload(c model.Confirmation) ([]byte, error) {
	return json.Marshal(c)
}

// QRCodePNG 將確認憑證編碼成 PNG 格式的 QR code
func QRCodePNG(c model.Confirmation, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	payload, err := Payload(c)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(string(payload), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func safeFilenamePart(s string) string {
	s = unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" {
		return "-"
	}
	return s
}

// ETicketPDF 產生含 QR code 的電子票券，回傳內容與下載檔名
func ETicketPDF(c model.Confirmation) ([]byte, string, error) {
	qr, err := QRCodePNG(c, DefaultQRSize)
	if err != nil {
		return nil, "", err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	// 核心字型只支援 cp1252，城市名稱含重音字母
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("E-Ticket", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "E-TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Passenger      : %s", c.Name),
		fmt.Sprintf("Route          : %s -> %s", c.Departure, c.Destination),
		fmt.Sprintf("Date / Time    : %s %s", c.Date, c.Time),
		fmt.Sprintf("Bus            : %s (%s)", c.Carrier, c.Class),
		fmt.Sprintf("Seat           : %s", c.Seat),
		fmt.Sprintf("Price          : %d FCFA", c.Price),
		fmt.Sprintf("Transaction    : %s", c.TransactionID),
	}
	for _, s := range lines {
		pdf.Cell(0, 7, tr(s))
		pdf.Ln(7)
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qr))
	pdf.ImageOptions("qr", 10, pdf.GetY()+4, 50, 50, false, opts, 0, "")
	pdf.SetY(pdf.GetY() + 58)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "This e-ticket is valid for one passenger and one seat. Please present it at boarding.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("ETICKET_%s_%s.pdf", safeFilenamePart(c.TransactionID), safeFilenamePart(c.Seat))
	return buf.Bytes(), filename, nil
}

// Dispatcher 將電子票券交付給乘客
type Dispatcher interface {
	Dispatch(ctx context.Context, receipt *model.Receipt, pdf []byte, filename string) error
}

// LogDispatcher 只記錄交付內容，不實際寄送
type LogDispatcher struct {
	log *zap.Logger
}

func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{log: logger.WithComponent("dispatcher")}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, receipt *model.Receipt, pdf []byte, filename string) error {
	d.log.Info("e-ticket dispatched",
		zap.String("session_id", receipt.SessionID.String()),
		zap.String("email", receipt.Email),
		zap.String("transaction_id", receipt.Transaction.ID),
		zap.String("filename", filename),
		zap.Int("bytes", len(pdf)),
	)
	return nil
}
