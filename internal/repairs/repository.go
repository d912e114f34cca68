package repairs

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairdesk/repairdesk/internal/inventory"
	"github.com/repairdesk/repairdesk/internal/platform/db"
	"github.com/repairdesk/repairdesk/internal/shared"
)

const ticketColumns = `id, customer_ref, customer_name, device_model, issue_description, status, estimated_cost, payment_method, created_at`

const partColumns = `p.id, p.ticket_id, p.item_id, i.name, p.quantity, p.consumed_at`

// Querier is satisfied by both pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository persists repair tickets in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	inventory.StockStore
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{StockStore: inventory.NewStockStore(tx)})
	})
}

func (t *txRepo) InsertTicket(ctx context.Context, ticket Ticket) (Ticket, error) {
	err := t.Tx().QueryRow(ctx, `INSERT INTO repair_tickets (customer_ref, customer_name, device_model, issue_description, status, estimated_cost, payment_method)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		ticket.CustomerRef, ticket.CustomerName, ticket.DeviceModel, ticket.IssueDescription,
		string(ticket.Status), ticket.EstimatedCost, string(ticket.PaymentMethod)).Scan(&ticket.ID, &ticket.CreatedAt)
	return ticket, err
}

func (t *txRepo) GetTicketForUpdate(ctx context.Context, id int64) (Ticket, error) {
	ticket, err := scanTicket(t.Tx().QueryRow(ctx, `SELECT `+ticketColumns+` FROM repair_tickets WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Ticket{}, ErrTicketNotFound
	}
	return ticket, err
}

func (t *txRepo) UpdateTicket(ctx context.Context, ticket Ticket) error {
	_, err := t.Tx().Exec(ctx, `UPDATE repair_tickets SET customer_ref = $2, customer_name = $3, device_model = $4,
issue_description = $5, status = $6, estimated_cost = $7, payment_method = $8 WHERE id = $1`,
		ticket.ID, ticket.CustomerRef, ticket.CustomerName, ticket.DeviceModel, ticket.IssueDescription,
		string(ticket.Status), ticket.EstimatedCost, string(ticket.PaymentMethod))
	return err
}

func (t *txRepo) DeleteTicket(ctx context.Context, id int64) error {
	tag, err := t.Tx().Exec(ctx, `DELETE FROM repair_tickets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTicketNotFound
	}
	return nil
}

func (t *txRepo) InsertPart(ctx context.Context, part Part) (Part, error) {
	err := t.Tx().QueryRow(ctx, `INSERT INTO repair_parts (ticket_id, item_id, quantity) VALUES ($1, $2, $3) RETURNING id`,
		part.TicketID, part.ItemID, part.Quantity).Scan(&part.ID)
	return part, err
}

func (t *txRepo) ListParts(ctx context.Context, ticketID int64) ([]Part, error) {
	parts, err := queryParts(ctx, t.Tx(), `SELECT `+partColumns+` FROM repair_parts p JOIN items i ON i.id = p.item_id
WHERE p.ticket_id = $1 ORDER BY p.id FOR UPDATE OF p`, ticketID)
	if err != nil {
		return nil, err
	}
	return parts[ticketID], nil
}

func (t *txRepo) MarkPartConsumed(ctx context.Context, partID int64, at time.Time) error {
	tag, err := t.Tx().Exec(ctx, `UPDATE repair_parts SET consumed_at = $2 WHERE id = $1`, partID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPartNotFound
	}
	return nil
}

// GetTicket loads one ticket with its parts.
func (r *Repository) GetTicket(ctx context.Context, id int64) (Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM repair_tickets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Ticket{}, ErrTicketNotFound
	}
	if err != nil {
		return Ticket{}, err
	}
	tickets := []Ticket{ticket}
	if err := attachParts(ctx, r.pool, tickets); err != nil {
		return Ticket{}, err
	}
	return tickets[0], nil
}

// ListTickets lists tickets newest first, each with its parts.
func (r *Repository) ListTickets(ctx context.Context, page shared.Page) ([]Ticket, error) {
	return ListNewest(ctx, r.pool, page.Limit(), page.Offset())
}

// ListNewest loads tickets newest first with their parts using q, which may be a snapshot transaction.
func ListNewest(ctx context.Context, q Querier, limit, offset int) ([]Ticket, error) {
	rows, err := q.Query(ctx, `SELECT `+ticketColumns+` FROM repair_tickets ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tickets []Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, attachParts(ctx, q, tickets)
}

// attachParts loads the part lines of tickets in one query.
func attachParts(ctx context.Context, q Querier, tickets []Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	ids := make([]int64, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}
	parts, err := queryParts(ctx, q, `SELECT `+partColumns+` FROM repair_parts p JOIN items i ON i.id = p.item_id
WHERE p.ticket_id = ANY($1) ORDER BY p.id`, ids)
	if err != nil {
		return err
	}
	for i := range tickets {
		tickets[i].Parts = parts[tickets[i].ID]
		if tickets[i].Parts == nil {
			tickets[i].Parts = []Part{}
		}
	}
	return nil
}

func queryParts(ctx context.Context, q Querier, sql string, args ...any) (map[int64][]Part, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64][]Part)
	for rows.Next() {
		var p Part
		if err := rows.Scan(&p.ID, &p.TicketID, &p.ItemID, &p.ItemName, &p.Quantity, &p.ConsumedAt); err != nil {
			return nil, err
		}
		out[p.TicketID] = append(out[p.TicketID], p)
	}
	return out, rows.Err()
}

func scanTicket(row pgx.Row) (Ticket, error) {
	var (
		t       Ticket
		status  string
		payment string
	)
	err := row.Scan(&t.ID, &t.CustomerRef, &t.CustomerName, &t.DeviceModel, &t.IssueDescription, &status,
		&t.EstimatedCost, &payment, &t.CreatedAt)
	t.Status = Status(status)
	t.PaymentMethod = shared.PaymentMethod(payment)
	return t, err
}
