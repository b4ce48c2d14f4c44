package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/noah-isme/toko-carriers/internal/auth"
	"github.com/noah-isme/toko-carriers/internal/credentials"
)

// seeder writes carrier credentials into site_config so a local stack can talk to
// the carrier sandboxes, and optionally prints an admin token for the admin routes.
func main() {
	issueToken := flag.Bool("token", false, "print an admin access token signed with JWT_SECRET")
	subject := flag.String("subject", "admin@toko.local", "subject of the issued token")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	if err := credentials.Migrate(dbURL); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedCarrierKeys(db)

	if *issueToken {
		printToken(*subject)
	}
	log.Println("Seeding completed successfully!")
}

func seedCarrierKeys(db *sql.DB) {
	keys := []struct {
		Key string
		Env string
	}{
		{credentials.KeyMondialRelayEnseigne, "SEED_MONDIAL_RELAY_ENSEIGNE"},
		{credentials.KeyMondialRelayPrivateKey, "SEED_MONDIAL_RELAY_KEY"},
		{credentials.KeyLaPosteAPIKey, "SEED_LAPOSTE_API_KEY"},
		{credentials.KeyColissimoContract, "SEED_COLISSIMO_CONTRACT"},
		{credentials.KeyColissimoPassword, "SEED_COLISSIMO_PASSWORD"},
	}

	fmt.Println("Seeding carrier credentials...")
	for _, k := range keys {
		value := strings.TrimSpace(os.Getenv(k.Env))
		if value == "" {
			log.Printf("Skipping %s: %s is empty", k.Key, k.Env)
			continue
		}
		_, err := db.Exec(`
			INSERT INTO site_config (key, value)
			VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now();
		`, k.Key, value)
		if err != nil {
			log.Printf("Failed to upsert %s: %v", k.Key, err)
			continue
		}
		fmt.Printf("  %s set\n", k.Key)
	}
}

func printToken(subject string) {
	svc, err := auth.NewService(auth.Config{
		Secret:   os.Getenv("JWT_SECRET"),
		Issuer:   os.Getenv("JWT_ISSUER"),
		Audience: os.Getenv("JWT_AUDIENCE"),
	})
	if err != nil {
		log.Fatalf("Failed to initialise auth: %v", err)
	}
	token, expiresAt, err := svc.IssueAccessToken(subject, []string{auth.RoleAdmin})
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Printf("Admin token (expires %s):\n%s\n", expiresAt.Format("2006-01-02 15:04:05"), token)
}
