package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"fintracker/models"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Creates a user directly in the configured Postgres database. Handy for
// seeding an environment before the API is reachable.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: go run ./cmd/create_user <name>")
		os.Exit(2)
	}
	name := strings.TrimSpace(strings.Join(os.Args[1:], " "))
	if name == "" {
		log.Fatal("name must not be empty")
	}

	_ = godotenv.Load()
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN not set in environment")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}

	// check existing; best-effort only, names carry no unique constraint
	var existing models.User
	if err := db.Where("name = ?", name).First(&existing).Error; err == nil {
		fmt.Printf("user %q already exists (id=%d)\n", name, existing.ID)
		os.Exit(0)
	}

	user := models.User{Name: name}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("failed to create user: %v", err)
	}
	fmt.Printf("created user %q id=%d\n", name, user.ID)
}
