package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"pizza42-api/internal/domain"
	"pizza42-api/internal/repository"
	"pizza42-api/pkg/database"
	"pizza42-api/pkg/logger"
)

const usage = "Usage: go run ./cmd/migrate [up|drop|seed <user_id>]"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	command := os.Args[1]

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.NewPostgresDB(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	switch command {
	case "up":
		if err := db.Exec(ctx, database.OrdersSchema); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("✅ orders table created")

	case "drop":
		if err := db.Exec(ctx, database.DropOrdersSchema); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("✅ orders table dropped")

	case "seed":
		if len(os.Args) < 3 {
			fmt.Println(usage)
			os.Exit(1)
		}
		if err := seed(ctx, db, os.Args[2]); err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		fmt.Println("✅ Demo orders seeded")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println(usage)
		os.Exit(1)
	}
}

// seed places a few backdated orders through the table store
func seed(ctx context.Context, db *database.PostgresDB, userID string) error {
	ids, err := repository.NewIDGenerator(1023)
	if err != nil {
		return err
	}
	store := repository.NewPostgresTableStore(db, ids, nil, logger.NewNop())

	demo := []struct {
		pizza string
		size  domain.Size
		total string
		ago   time.Duration
	}{
		{"Margherita", domain.SizeMedium, "16.99", 21 * 24 * time.Hour},
		{"Pepperoni", domain.SizeLarge, "21.50", 14 * 24 * time.Hour},
		{"Margherita", domain.SizeLarge, "19.99", 2 * 24 * time.Hour},
	}

	for _, d := range demo {
		total := decimal.RequireFromString(d.total)
		date := time.Now().Add(-d.ago).UTC()
		order, err := store.Place(ctx, userID, domain.OrderInput{
			Pizza: d.pizza,
			Size:  d.size,
			Total: &total,
			Date:  &date,
		})
		if err != nil {
			return err
		}
		fmt.Printf("  Seeded: %s %s %s %s\n", order.ID, order.Pizza, order.Size, order.Total.StringFixed(2))
	}
	return nil
}
