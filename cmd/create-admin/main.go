package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/stemsi/ielts-backend/internal/config"
	"github.com/stemsi/ielts-backend/internal/database"
	"github.com/stemsi/ielts-backend/internal/logger"
	"github.com/stemsi/ielts-backend/internal/model"
	"github.com/stemsi/ielts-backend/internal/repository"
	"github.com/stemsi/ielts-backend/internal/service"
)

// create-admin creates an administrator, or promotes the account that
// already owns the email and resets its password.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	users := repository.NewUserRepository(pool)
	// Only HashPassword is used; no sessions are issued here.
	auth := service.NewAuthService(cfg, users, nil, log)

	reader := bufio.NewReader(os.Stdin)
	fmt.Println("=== Create Admin User ===")

	username := prompt(reader, "Enter Username: ")
	if len(username) < 3 {
		fmt.Println("Error: Username must be at least 3 characters")
		os.Exit(1)
	}

	email := strings.ToLower(prompt(reader, "Enter Email: "))
	if !strings.Contains(email, "@") {
		fmt.Println("Error: A valid email is required")
		os.Exit(1)
	}

	fmt.Print("Enter Password: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading password")
		os.Exit(1)
	}
	password := string(raw)
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	u := &model.User{Username: username, Email: email, PasswordHash: hash}
	if err := users.UpsertAdmin(ctx, u); err != nil {
		log.Fatal().Err(err).Msg("Failed to create admin")
	}

	fmt.Printf("\nSuccess! Admin %q (%s) has ID %d\n", u.Username, u.Email, u.ID)
}

func prompt(r *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}
