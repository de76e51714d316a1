package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Status reports backing-store reachability for the health endpoint.
type Status struct {
	Postgres string `json:"postgres"`
	Redis    string `json:"redis"`
}

// Healthy is true when every store answered.
func (s Status) Healthy() bool {
	return s.Postgres == "ok" && s.Redis == "ok"
}

// Checker pings the stores with a short deadline.
type Checker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewChecker creates a Checker.
func NewChecker(pool *pgxpool.Pool, rdb *redis.Client) *Checker {
	return &Checker{pool: pool, rdb: rdb}
}

// Check pings PostgreSQL and Redis.
func (c *Checker) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	st := Status{Postgres: "ok", Redis: "ok"}
	if err := c.pool.Ping(ctx); err != nil {
		st.Postgres = err.Error()
	}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		st.Redis = err.Error()
	}
	return st
}
