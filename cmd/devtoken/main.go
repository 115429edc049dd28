// Command devtoken issues an access token for an existing user so the API
// can be exercised locally without the external auth service.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/bookloop/bookloop-api/internal/config"
	"github.com/bookloop/bookloop-api/internal/pkg/database"
	"github.com/bookloop/bookloop-api/internal/pkg/jwt"
)

type userRow struct {
	ID            uuid.UUID `db:"id"`
	Role          string    `db:"role"`
	CreditBalance int       `db:"credit_balance"`
}

func main() {
	userArg := flag.String("user", "", "user id")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to JWT_ACCESS_TTL)")
	flag.Parse()

	cfg := config.Load()
	if cfg.IsProduction() {
		log.Fatal("devtoken must not be used in production")
	}

	userID, err := uuid.Parse(*userArg)
	if err != nil {
		log.Fatalf("Invalid -user: %v", err)
	}

	db, err := database.NewPostgres(cfg.DatabaseURL, database.PoolConfig{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.ClosePostgres(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var u userRow
	err = db.GetContext(ctx, &u, `SELECT id, role, credit_balance FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		log.Fatalf("User %s not found", userID)
	}
	if err != nil {
		log.Fatalf("Failed to load user: %v", err)
	}

	accessTTL := cfg.JWTAccessTTL
	if *ttl > 0 {
		accessTTL = *ttl
	}
	token, err := jwt.NewService(cfg.JWTSecret, accessTTL).GenerateAccessToken(u.ID, u.Role, false)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Printf("User: %s | role: %s | credits: %d\n", u.ID, u.Role, u.CreditBalance)
	fmt.Println(token)
}
