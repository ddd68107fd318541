package database

import (
	"context"
	"embed"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"

	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const MaxRecentMatches = 100

// Service is the match archive. A Noop service is used when no database is
// configured.
type Service interface {
	// Health returns a map of health status information.
	Health(ctx context.Context) map[string]string

	RecordMatch(ctx context.Context, result internal.MatchResult) error
	RecentMatches(ctx context.Context, limit int) ([]internal.MatchResult, error)

	Close()
}

type service struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and applies pending migrations.
func New(ctx context.Context, connString string) (Service, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().Msg("[database.New] connected to postgres")
	return &service{pool: pool}, nil
}

// Migrate runs the embedded goose migrations over a database/sql handle
// borrowed from the pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info().Msg("[database.Migrate] migrations applied")
	return nil
}

func (s *service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	stats := make(map[string]string)
	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		log.Error().Err(err).Msg("[database.Health] ping failed")
		return stats
	}

	poolStats := s.pool.Stat()
	stats["status"] = "up"
	stats["message"] = "It's healthy"
	stats["total_connections"] = strconv.Itoa(int(poolStats.TotalConns()))
	stats["idle_connections"] = strconv.Itoa(int(poolStats.IdleConns()))
	stats["acquired_connections"] = strconv.Itoa(int(poolStats.AcquiredConns()))
	stats["max_connections"] = strconv.Itoa(int(poolStats.MaxConns()))
	return stats
}

func (s *service) RecordMatch(ctx context.Context, result internal.MatchResult) error {
	winner := ""
	if len(result.Ranking) > 0 {
		winner = result.Ranking[0].PlayerName
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var matchID int64
		err := tx.QueryRow(ctx,
			"INSERT INTO matches (room_id, rounds, winner_name, finished_at) VALUES ($1, $2, $3, $4) RETURNING id",
			result.RoomId, result.Rounds, winner, result.FinishedAt,
		).Scan(&matchID)
		if err != nil {
			return fmt.Errorf("insert match: %w", err)
		}

		rows := make([][]any, 0, len(result.Ranking))
		for i, entry := range result.Ranking {
			rows = append(rows, []any{matchID, i + 1, entry.PlayerId, entry.PlayerName, entry.Score})
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"match_players"},
			[]string{"match_id", "position", "player_id", "player_name", "score"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("insert match players: %w", err)
		}
		return nil
	})
}

func (s *service) RecentMatches(ctx context.Context, limit int) ([]internal.MatchResult, error) {
	if limit <= 0 || limit > MaxRecentMatches {
		limit = MaxRecentMatches
	}

	rows, err := s.pool.Query(ctx,
		"SELECT id, room_id, rounds, finished_at FROM matches ORDER BY finished_at DESC, id DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (internal.MatchResult, error) {
		var m internal.MatchResult
		err := row.Scan(&m.Id, &m.RoomId, &m.Rounds, &m.FinishedAt)
		m.Ranking = []internal.RankingEntry{}
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan matches: %w", err)
	}
	if len(matches) == 0 {
		return matches, nil
	}

	ids := make([]int64, len(matches))
	byID := make(map[int64]int, len(matches))
	for i, m := range matches {
		ids[i] = m.Id
		byID[m.Id] = i
	}

	playerRows, err := s.pool.Query(ctx,
		"SELECT match_id, player_id, player_name, score FROM match_players WHERE match_id = ANY($1) ORDER BY match_id, position", ids)
	if err != nil {
		return nil, fmt.Errorf("query match players: %w", err)
	}
	defer playerRows.Close()

	for playerRows.Next() {
		var matchID int64
		var entry internal.RankingEntry
		if err := playerRows.Scan(&matchID, &entry.PlayerId, &entry.PlayerName, &entry.Score); err != nil {
			return nil, fmt.Errorf("scan match player: %w", err)
		}
		if i, ok := byID[matchID]; ok {
			matches[i].Ranking = append(matches[i].Ranking, entry)
		}
	}
	if err := playerRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match players: %w", err)
	}
	return matches, nil
}

func (s *service) Close() {
	log.Info().Msg("[database.Close] disconnecting from postgres")
	s.pool.Close()
}

// Noop discards matches. It backs the archive when DATABASE_URL is empty.
type Noop struct{}

func (Noop) Health(context.Context) map[string]string {
	return map[string]string{"status": "disabled"}
}

func (Noop) RecordMatch(context.Context, internal.MatchResult) error { return nil }

func (Noop) RecentMatches(context.Context, int) ([]internal.MatchResult, error) {
	return []internal.MatchResult{}, nil
}

func (Noop) Close() {}
