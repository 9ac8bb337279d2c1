// Command rehash-rules is a one-time migration script that recomputes
// content_hash for all rules records in the database. Run this after
// changing the canonical hash encoding (for example when list fields
// became order-independent).
//
// Usage:
//
//	DATABASE_URL=postgres://... go run ./scripts/rehash-rules
//
// The script reads every rules row, recomputes the hash with the current
// algorithm, and updates any rows where the stored hash differs. When a
// recomputed hash collides with another existing row the update is
// skipped and reported; those duplicates need a manual merge because
// bindings may reference either record.
//
// Safe to run multiple times. Once all hashes match, it reports 0
// updates and exits immediately.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/sagelearn/sagacity/internal/model"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	rows, err := pool.Query(ctx,
		`SELECT id, criterion_name, threshold, fields, content_hash
		 FROM rules
		 ORDER BY created_at ASC`)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	type staleRow struct {
		id       uuid.UUID
		expected string
	}

	var stale []staleRow
	var total int
	for rows.Next() {
		var (
			r          model.Rules
			fields     []byte
			storedHash string
		)
		if err := rows.Scan(&r.ID, &r.CriterionName, &r.Threshold, &fields, &storedHash); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if err := json.Unmarshal(fields, &r.Fields); err != nil {
			return fmt.Errorf("decode fields for %s: %w", r.ID, err)
		}
		total++
		expected := r.ContentHash()
		if storedHash != expected {
			stale = append(stale, staleRow{id: r.ID, expected: expected})
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows: %w", err)
	}

	fmt.Printf("scanned %d rules, %d have stale hashes\n", total, len(stale))

	if len(stale) == 0 {
		fmt.Println("nothing to do")
		return nil
	}

	updated, skipped := 0, 0
	for _, r := range stale {
		// The unique index on content_hash rejects updates that collide
		// with an existing row; those are duplicates under the new
		// encoding and need a manual merge of their bindings.
		tag, err := pool.Exec(ctx,
			`UPDATE rules SET content_hash = $1
			 WHERE id = $2
			   AND NOT EXISTS (SELECT 1 FROM rules WHERE content_hash = $1)`,
			r.expected, r.id)
		if err != nil {
			log.Printf("update %s: %v", r.id, err)
			continue
		}
		if tag.RowsAffected() > 0 {
			updated++
		} else {
			skipped++
			log.Printf("skipped %s: hash collides with an existing row", r.id)
		}
	}

	fmt.Printf("updated %d/%d stale hashes (%d skipped)\n", updated, len(stale), skipped)
	return nil
}
