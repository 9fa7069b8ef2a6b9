package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"FlipDesk/internal/domain/models"
	domrepo "FlipDesk/internal/domain/repository"
)

// PoolConfig mirrors the pgxpool knobs exposed in config.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func NewPostgresPool(ctx context.Context, dsn string, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 && cfg.MinConns <= poolCfg.MaxConns {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	return pool, nil
}

var deskSchema = []string{
	`create table if not exists items (
		id bigint primary key,
		name text not null,
		category text not null default '',
		buy_limit bigint not null default 0,
		bot_claim boolean not null default false,
		in_pool boolean not null default true,
		updated_at timestamptz not null default now()
	);`,
	`create table if not exists positions (
		user_id text not null,
		item_id bigint not null references items(id),
		quantity bigint not null default 0,
		avg_buy_price double precision not null default 0,
		last_price double precision not null default 0,
		unrealized_profit double precision not null default 0,
		realized_profit double precision not null default 0,
		updated_at timestamptz not null default now(),
		primary key (user_id, item_id)
	);`,
	`create table if not exists theses (
		user_id text not null,
		item_id bigint not null references items(id),
		target_buy double precision null,
		target_sell double precision null,
		priority int not null default 0,
		active boolean not null default true,
		status text not null default 'watching',
		created_at timestamptz not null default now(),
		primary key (user_id, item_id)
	);`,
	`create table if not exists alerts (
		id text primary key,
		user_id text not null,
		item_id bigint null,
		title text not null,
		message text not null default '',
		severity text not null default 'low',
		created_at timestamptz not null default now(),
		resolved_at timestamptz null
	);`,
	`create index if not exists idx_alerts_user_open on alerts(user_id) where resolved_at is null;`,
	`create table if not exists order_attempts (
		id text primary key,
		user_id text not null,
		item_id bigint not null,
		side text not null,
		price double precision not null,
		quantity bigint not null,
		status text not null,
		created_at timestamptz not null default now()
	);`,
	`create index if not exists idx_orders_user_status on order_attempts(user_id, status, created_at);`,
}

// PostgresDesk stores the per-user desk state and the item catalog.
type PostgresDesk struct {
	pool *pgxpool.Pool
}

func NewPostgresDesk(pool *pgxpool.Pool) *PostgresDesk {
	return &PostgresDesk{pool: pool}
}

// Migrate creates the desk tables.
func (r *PostgresDesk) Migrate(ctx context.Context) error {
	for _, stmt := range deskSchema {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (r *PostgresDesk) ListOpenPositions(ctx context.Context, sess models.SessionContext) ([]models.Position, error) {
	rows, err := r.pool.Query(ctx, `
		select p.item_id, i.name, p.quantity, p.avg_buy_price, p.last_price,
		       p.unrealized_profit, p.realized_profit
		from positions p
		join items i on i.id = p.item_id
		where p.user_id = $1 and p.quantity > 0
		order by p.item_id`, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var out []models.Position
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(&p.ItemID, &p.ItemName, &p.Quantity, &p.AvgBuyPrice, &p.LastPrice, &p.UnrealizedProfit, &p.RealizedProfit); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresDesk) ListActiveTheses(ctx context.Context, sess models.SessionContext) ([]models.Thesis, error) {
	rows, err := r.pool.Query(ctx, `
		select t.item_id, i.name, t.target_buy, t.target_sell, t.priority, t.active, t.status
		from theses t
		join items i on i.id = t.item_id
		where t.user_id = $1 and t.active
		order by t.priority desc, t.item_id`, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("list theses: %w", err)
	}
	defer rows.Close()

	var out []models.Thesis
	for rows.Next() {
		var (
			t      models.Thesis
			status string
		)
		if err := rows.Scan(&t.ItemID, &t.ItemName, &t.TargetBuy, &t.TargetSell, &t.Priority, &t.Active, &status); err != nil {
			return nil, fmt.Errorf("scan thesis: %w", err)
		}
		t.Status = models.ThesisStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresDesk) ListUnresolvedAlerts(ctx context.Context, sess models.SessionContext) ([]models.Alert, error) {
	rows, err := r.pool.Query(ctx, `
		select id, item_id, title, message, severity
		from alerts
		where user_id = $1 and resolved_at is null
		order by created_at desc`, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []models.Alert
	for rows.Next() {
		var (
			a        models.Alert
			severity string
		)
		if err := rows.Scan(&a.ID, &a.ItemID, &a.Title, &a.Message, &severity); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Severity = models.Severity(severity)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListStaleOrders returns pending order attempts created before the cutoff.
func (r *PostgresDesk) ListStaleOrders(ctx context.Context, sess models.SessionContext, before time.Time) ([]models.Order, error) {
	rows, err := r.pool.Query(ctx, `
		select o.id, o.item_id, coalesce(i.name, ''), o.side, o.price, o.quantity, o.status, o.created_at
		from order_attempts o
		left join items i on i.id = o.item_id
		where o.user_id = $1 and o.status in ('open', 'pending') and o.created_at < $2
		order by o.created_at`, sess.UserID, before)
	if err != nil {
		return nil, fmt.Errorf("list stale orders: %w", err)
	}
	defer rows.Close()

	var out []models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.ItemID, &o.ItemName, &o.Side, &o.Price, &o.Quantity, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PostgresDesk) ListPool(ctx context.Context) ([]models.Item, error) {
	rows, err := r.pool.Query(ctx, `
		select id, name, category, buy_limit, bot_claim
		from items
		where in_pool
		order by id`)
	if err != nil {
		return nil, fmt.Errorf("list pool: %w", err)
	}
	defer rows.Close()

	var out []models.Item
	for rows.Next() {
		var it models.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Category, &it.BuyLimit, &it.BotClaim); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// GetItem returns nil when the item is unknown.
func (r *PostgresDesk) GetItem(ctx context.Context, itemID int64) (*models.Item, error) {
	var it models.Item
	err := r.pool.QueryRow(ctx, `
		select id, name, category, buy_limit, bot_claim
		from items where id = $1`, itemID).
		Scan(&it.ID, &it.Name, &it.Category, &it.BuyLimit, &it.BotClaim)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", itemID, err)
	}
	return &it, nil
}

func (r *PostgresDesk) BuyLimits(ctx context.Context, itemIDs []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `select id, buy_limit from items where id = any($1)`, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("buy limits: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, limit int64
		if err := rows.Scan(&id, &limit); err != nil {
			return nil, fmt.Errorf("scan buy limit: %w", err)
		}
		out[id] = limit
	}
	return out, rows.Err()
}

// UpsertItems syncs catalog rows. Pool membership and bot flags are owned by
// the desk, so only new rows take the computed membership.
func (r *PostgresDesk) UpsertItems(ctx context.Context, items []models.Item, poolIDs []int64) error {
	if len(items) == 0 {
		return nil
	}
	pool := make(map[int64]bool, len(poolIDs))
	for _, id := range poolIDs {
		pool[id] = true
	}
	batch := &pgx.Batch{}
	for _, it := range items {
		inPool := pool[it.ID] || (len(pool) == 0 && it.BuyLimit > 0)
		batch.Queue(`
			insert into items(id, name, category, buy_limit, in_pool, updated_at)
			values ($1, $2, $3, $4, $5, now())
			on conflict (id) do update set
				name = excluded.name,
				category = excluded.category,
				buy_limit = excluded.buy_limit,
				updated_at = excluded.updated_at`,
			it.ID, it.Name, it.Category, it.BuyLimit, inPool)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert items: %w", err)
	}
	return nil
}

func (r *PostgresDesk) Close() {
	r.pool.Close()
}

var (
	_ domrepo.PositionRepository = (*PostgresDesk)(nil)
	_ domrepo.ThesisRepository   = (*PostgresDesk)(nil)
	_ domrepo.AlertRepository    = (*PostgresDesk)(nil)
	_ domrepo.OrderRepository    = (*PostgresDesk)(nil)
	_ domrepo.ItemRepository     = (*PostgresDesk)(nil)
	_ domrepo.CatalogStore       = (*PostgresDesk)(nil)
)
