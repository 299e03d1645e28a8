package rating

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Repository is the postgres-backed Store.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// EnsureSchema creates the users and games tables when missing. The
// user table default mirrors the configured base rating.
func (r *Repository) EnsureSchema(ctx context.Context, baseRating int) error {
	usersDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		rating INTEGER NOT NULL DEFAULT %d,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		draws INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, baseRating)
	gamesDDL := `CREATE TABLE IF NOT EXISTS games (
		game_id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL,
		white_id TEXT,
		white_name TEXT,
		black_id TEXT,
		black_name TEXT,
		result TEXT NOT NULL,
		reason TEXT,
		moves_uci TEXT NOT NULL,
		moves_san TEXT NOT NULL,
		pgn TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := r.db.ExecContext(ctx, usersDDL); err != nil {
		return fmt.Errorf("ensure users table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, gamesDDL); err != nil {
		return fmt.Errorf("ensure games table: %w", err)
	}
	return nil
}

func (r *Repository) User(ctx context.Context, id string) (*User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	var u User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, rating, wins, losses, draws FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Rating, &u.Wins, &u.Losses, &u.Draws)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SaveSettlement inserts the archive row and applies the delta in one
// transaction. The insert is the idempotency guard: when the game row
// already exists the rating updates are skipped, so a retry after a
// partially observed failure cannot double-count.
func (r *Repository) SaveSettlement(ctx context.Context, game CompletedGame, delta *Delta) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	movesUCIRaw, _ := json.Marshal(game.MovesUCI)
	movesSANRaw, _ := json.Marshal(game.MovesSAN)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO games (
			game_id, room_id, white_id, white_name, black_id, black_name,
			result, reason, moves_uci, moves_san, pgn, started_at, ended_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (game_id) DO NOTHING`,
		game.GameID, game.RoomID,
		game.WhiteID, game.WhiteName, game.BlackID, game.BlackName,
		string(game.Result), game.Reason,
		string(movesUCIRaw), string(movesSANRaw), game.PGN,
		game.StartedAt, game.EndedAt,
	)
	if err != nil {
		return err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 1 && delta != nil {
		if err := applyDelta(ctx, tx, delta); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func applyDelta(ctx context.Context, tx *sql.Tx, d *Delta) error {
	const q = `UPDATE users
		SET rating = $1, wins = wins + $2, losses = losses + $3, draws = draws + $4
		WHERE id = $5`
	if _, err := tx.ExecContext(ctx, q, d.WhiteRating, d.WhiteWins, d.WhiteLosses, d.WhiteDraws, d.WhiteID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, q, d.BlackRating, d.BlackWins, d.BlackLosses, d.BlackDraws, d.BlackID); err != nil {
		return err
	}
	return nil
}
