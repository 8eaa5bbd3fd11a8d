package repository

import (
	"context"
	"fmt"
	"time"

	"go-gin-bus-reservation/internal/model"
	apperrors "go-gin-bus-reservation/pkg/app_errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema 票券目錄資料表；庫存在此流程中只讀，不會被扣減
const Schema = `
	CREATE TABLE IF NOT EXISTS bus_tickets (
		id               SERIAL PRIMARY KEY,
		departure_city   TEXT    NOT NULL,
		destination_city TEXT    NOT NULL,
		travel_date      DATE    NOT NULL,
		carrier          TEXT    NOT NULL,
		class            TEXT    NOT NULL CHECK (class IN ('standard', 'vip')),
		price            INTEGER NOT NULL CHECK (price > 0),
		total_seats      INTEGER NOT NULL CHECK (total_seats > 0),
		available_seats  INTEGER NOT NULL CHECK (available_seats >= 0 AND available_seats <= total_seats),
		features         TEXT[]  NOT NULL DEFAULT '{}'
	)
`

type TicketRepository interface {
	// 依路線與日期列出票券，依 id 排序以保證相同輸入有相同結果
	ListByRoute(ctx context.Context, query model.RouteQuery) ([]model.Ticket, error)
	Create(ctx context.Context, query model.RouteQuery, ticket *model.Ticket) (*model.Ticket, error)
}

type TicketRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &TicketRepositoryImpl{
		pool: pool,
	}
}

// EnsureSchema 建立資料表（若不存在）
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}

func (r *TicketRepositoryImpl) ListByRoute(ctx context.Context, query model.RouteQuery) ([]model.Ticket, error) {
	date, err := time.Parse(model.DateLayout, query.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: travel date %q", apperrors.ErrInvalidInput, query.Date)
	}

	sql := `
		SELECT id, carrier, class, price,
				total_seats, available_seats, features
		FROM bus_tickets
		WHERE departure_city = $1 AND destination_city = $2 AND travel_date = $3
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, sql, query.DepartureCity, query.DestinationCity, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := make([]model.Ticket, 0)

	for rows.Next() {
		var ticket model.Ticket
		var class string
		err := rows.Scan(
			&ticket.ID,
			&ticket.Carrier,
			&class,
			&ticket.Price,
			&ticket.TotalSeats,
			&ticket.AvailableSeats,
			&ticket.Features,
		)
		if err != nil {
			return nil, err
		}
		ticket.Class = model.TicketClass(class)
		tickets = append(tickets, ticket)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tickets, nil
}

func (r *TicketRepositoryImpl) Create(ctx context.Context, query model.RouteQuery, ticket *model.Ticket) (*model.Ticket, error) {
	date, err := time.Parse(model.DateLayout, query.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: travel date %q", apperrors.ErrInvalidInput, query.Date)
	}
	if !ticket.IsValid() {
		return nil, fmt.Errorf("%w: ticket %+v", apperrors.ErrInvalidInput, *ticket)
	}

	features := ticket.Features
	if features == nil {
		features = []string{}
	}

	sql := `
		INSERT INTO bus_tickets (
			departure_city, destination_city, travel_date,
			carrier, class, price, total_seats, available_seats, features)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err = r.pool.QueryRow(ctx, sql,
		query.DepartureCity, query.DestinationCity, date,
		ticket.Carrier, string(ticket.Class), ticket.Price,
		ticket.TotalSeats, ticket.AvailableSeats, features,
	).Scan(&ticket.ID)

	if err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	return ticket, nil
}
