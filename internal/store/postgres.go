package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"realtopia/internal/game"
	"realtopia/internal/metrics"
)

type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func observe(op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (s *Postgres) ListProperties(ctx context.Context) ([]game.Property, error) {
	defer observe("list_properties", time.Now())
	rows, err := s.db.Query(ctx, `
		SELECT id, name, type, location, listing_micros, current_micros, purchase_micros,
		       owned, purchased_at, grid_x, grid_y, price_change_micros, price_change_percent
		FROM properties
		ORDER BY grid_y, grid_x
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []game.Property
	for rows.Next() {
		var p game.Property
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Type, &p.Location, &p.ListingMicros, &p.CurrentMicros, &p.PurchaseMicros,
			&p.Owned, &p.PurchasedAt, &p.GridX, &p.GridY, &p.PriceChangeMicros, &p.PriceChangePercent,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) ListAchievements(ctx context.Context) ([]game.Achievement, error) {
	defer observe("list_achievements", time.Now())
	rows, err := s.db.Query(ctx, `
		SELECT id, title, description, type, target, progress, unlocked, hidden, reward_micros, unlocked_at
		FROM achievements
		ORDER BY position, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []game.Achievement
	for rows.Next() {
		var a game.Achievement
		if err := rows.Scan(
			&a.ID, &a.Title, &a.Description, &a.Type, &a.Target, &a.Progress,
			&a.Unlocked, &a.Hidden, &a.RewardMicros, &a.UnlockedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// PriceHistory returns up to limit of the latest points, oldest first.
func (s *Postgres) PriceHistory(ctx context.Context, propertyID string, limit int) ([]game.PricePoint, error) {
	defer observe("price_history", time.Now())
	rows, err := s.db.Query(ctx, `
		SELECT property_id, tick_at, price_micros
		FROM property_prices
		WHERE property_id = $1
		ORDER BY tick_at DESC, id DESC
		LIMIT $2
	`, propertyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []game.PricePoint
	for rows.Next() {
		var pt game.PricePoint
		if err := rows.Scan(&pt.PropertyID, &pt.TickAt, &pt.PriceMicros); err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

func (s *Postgres) Apply(ctx context.Context, cs game.Changeset) error {
	defer observe("apply", time.Now())
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := upsertPropertiesTx(ctx, tx, cs.Properties); err != nil {
		return err
	}
	if err := upsertAchievementsTx(ctx, tx, cs.Achievements); err != nil {
		return err
	}
	if len(cs.Prices) > 0 {
		batch := &pgx.Batch{}
		for _, pt := range cs.Prices {
			batch.Queue(`
				INSERT INTO property_prices (property_id, tick_at, price_micros)
				VALUES ($1, $2, $3)
			`, pt.PropertyID, pt.TickAt, pt.PriceMicros)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert price points: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// Replace wipes the board and writes a new one in a single transaction.
func (s *Postgres) Replace(ctx context.Context, properties []game.Property, achievements []game.Achievement) error {
	defer observe("replace", time.Now())
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE property_prices, properties, achievements`); err != nil {
		return fmt.Errorf("truncate board: %w", err)
	}
	if err := upsertPropertiesTx(ctx, tx, properties); err != nil {
		return err
	}
	if err := upsertAchievementsTx(ctx, tx, achievements); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func upsertPropertiesTx(ctx context.Context, tx pgx.Tx, props []game.Property) error {
	for _, p := range props {
		if _, err := tx.Exec(ctx, `
			INSERT INTO properties (
				id, name, type, location, listing_micros, current_micros, purchase_micros,
				owned, purchased_at, grid_x, grid_y, price_change_micros, price_change_percent, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
			ON CONFLICT (id) DO UPDATE SET
				current_micros = EXCLUDED.current_micros,
				purchase_micros = EXCLUDED.purchase_micros,
				owned = EXCLUDED.owned,
				purchased_at = EXCLUDED.purchased_at,
				price_change_micros = EXCLUDED.price_change_micros,
				price_change_percent = EXCLUDED.price_change_percent,
				updated_at = now()
		`, p.ID, p.Name, string(p.Type), string(p.Location), p.ListingMicros, p.CurrentMicros, p.PurchaseMicros,
			p.Owned, p.PurchasedAt, p.GridX, p.GridY, p.PriceChangeMicros, p.PriceChangePercent); err != nil {
			return fmt.Errorf("upsert property %s: %w", p.ID, err)
		}
	}
	return nil
}

func upsertAchievementsTx(ctx context.Context, tx pgx.Tx, achs []game.Achievement) error {
	for i, a := range achs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO achievements (
				id, title, description, type, target, progress, unlocked, hidden, reward_micros, unlocked_at, position
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				progress = EXCLUDED.progress,
				unlocked = EXCLUDED.unlocked,
				unlocked_at = EXCLUDED.unlocked_at
		`, a.ID, a.Title, a.Description, string(a.Type), a.Target, a.Progress, a.Unlocked, a.Hidden,
			a.RewardMicros, a.UnlockedAt, i); err != nil {
			return fmt.Errorf("upsert achievement %s: %w", a.ID, err)
		}
	}
	return nil
}
