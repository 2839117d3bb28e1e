package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"livepoll/config"
	"livepoll/internal/repository"
	"livepoll/pkg/database"
)

const usage = `
LivePoll - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Run all migrations (SQL + GORM)
  status      Show database connection status
  seed        Seed the database with the admin user
  seed-dev    Seed with development/demo data
  reset       Drop all tables and re-run migrations (DANGEROUS)
  truncate    Truncate all tables (DANGEROUS)

Flags:
  -migrations string   Path to migrations directory (default "migrations")
  -admin-email string  Admin email for seeding (default "admin@livepoll.dev")
  -admin-pass string   Admin password for seeding (default "Admin@123!")

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go seed
  go run cmd/migrate/main.go seed-dev
  go run cmd/migrate/main.go reset
`

func main() {
	migrationsDir := flag.String("migrations", "migrations", "Path to migrations directory")
	adminEmail := flag.String("admin-email", "admin@livepoll.dev", "Admin email for seeding")
	adminPass := flag.String("admin-pass", "Admin@123!", "Admin password for seeding")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	database.Connect(cfg)
	defer database.Close()

	switch command {
	case "up":
		runMigrationsUp(*migrationsDir)
	case "status":
		showStatus()
	case "seed":
		runSeedProduction(*adminEmail, *adminPass)
	case "seed-dev":
		runSeedDevelopment()
	case "reset":
		runReset(*migrationsDir)
	case "truncate":
		runTruncate()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(migrationsDir string) {
	log.Println("🚀 Running migrations UP...")

	if err := database.ApplyRawMigrations(migrationsDir); err != nil {
		log.Fatalf("❌ Raw migration failed: %v", err)
	}
	if err := repository.InitSchema(database.DB); err != nil {
		log.Fatalf("❌ Schema migration failed: %v", err)
	}

	log.Println("✅ Migrations completed successfully!")
}

func showStatus() {
	log.Println("🔍 Checking database status...")

	if err := database.Ping(); err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	log.Println("✅ Database connection: OK")

	tables := []string{"users", "user_sessions", "recovery_tokens", "polls", "poll_options", "votes", "outbox_events"}
	for _, table := range tables {
		exists, err := database.TableExists(table)
		if err != nil {
			log.Printf("⚠️  Error checking table %s: %v", table, err)
			continue
		}
		if exists {
			count, _ := database.GetTableCount(table)
			log.Printf("✅ Table %-20s exists (%d rows)", table, count)
		} else {
			log.Printf("❌ Table %-20s does not exist", table)
		}
	}

	if err := database.HealthCheck(); err != nil {
		log.Printf("⚠️  Health check warning: %v", err)
	} else {
		log.Println("✅ Health check: PASSED")
	}
}

func runSeedProduction(adminEmail, adminPass string) {
	log.Println("🌱 Seeding database (production mode)...")

	cfg := database.DefaultSeedConfig()
	cfg.AdminEmail = adminEmail
	cfg.AdminPassword = adminPass

	admin, err := database.SeedMinimal(cfg)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✅ Admin user created/verified: %s (ID: %s)", adminEmail, admin.ID)
	log.Println("✅ Production seeding completed!")
}

func runSeedDevelopment() {
	log.Println("🌱 Seeding database (development mode)...")

	cfg := database.DefaultSeedConfig()
	cfg.CreateDemoData = true

	result, err := database.Seed(cfg)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("📊 Seed Summary:")
	log.Printf("   - Admin user: %s", result.AdminUser.Email)
	log.Printf("   - Demo users: %d", len(result.DemoUsers))
	log.Printf("   - Polls: %d", len(result.Polls))
	log.Printf("   - Votes: %d", result.VoteCount)
	log.Println("✅ Development seeding completed!")
}

func runReset(migrationsDir string) {
	log.Println("⚠️  WARNING: This will DROP all tables and re-run migrations!")
	log.Println("⚠️  Press Ctrl+C within 5 seconds to cancel...")

	fmt.Print("Proceeding in: ")
	for i := 5; i > 0; i-- {
		fmt.Printf("%d... ", i)
		time.Sleep(time.Second)
	}
	fmt.Println()

	log.Println("🗑️  Dropping all tables...")
	if err := database.DropAllTables(); err != nil {
		log.Fatalf("❌ Failed to drop tables: %v", err)
	}

	log.Println("🚀 Running migrations...")
	runMigrationsUp(migrationsDir)

	log.Println("✅ Database reset completed!")
}

func runTruncate() {
	log.Println("⚠️  WARNING: This will TRUNCATE all tables!")

	if err := database.TruncateAllTables(); err != nil {
		log.Fatalf("❌ Truncate failed: %v", err)
	}

	log.Println("✅ All tables truncated!")
}
