package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"bookshelf/internal/auth"
	"bookshelf/internal/config"
	"bookshelf/internal/db"
	"bookshelf/internal/model"
	"bookshelf/internal/repository"
)

// SeedUserData is one entry of the seed file.
type SeedUserData struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	Role      string  `json:"role,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

func main() {
	source := flag.String("source", "seed/users.json", "path or http(s) URL of the user seed file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	logger.Info("loading seed users", "source", *source)
	users, err := loadSeedUsers(*source)
	if err != nil {
		logger.Error("failed to load seed users", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	created, skipped, err := seedUsers(ctx, repository.NewUserRepository(gormDB), auth.NewBcryptHasher(cfg.BcryptCost), users)
	if err != nil {
		logger.Error("failed to seed users", "error", err)
		os.Exit(1)
	}
	logger.Info("seed completed", "created", created, "skipped", skipped)
}

func loadSeedUsers(source string) ([]SeedUserData, error) {
	var r io.ReadCloser
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := http.Get(source)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch seed file: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("seed source returned status code: %d", resp.StatusCode)
		}
		r = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open seed file: %w", err)
		}
		r = f
	}
	defer r.Close()

	return decodeSeedUsers(r)
}

func decodeSeedUsers(r io.Reader) ([]SeedUserData, error) {
	var users []SeedUserData
	if err := json.NewDecoder(r).Decode(&users); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return users, nil
}

// seedUsers inserts pre-verified accounts. Emails that already exist are left untouched.
func seedUsers(ctx context.Context, repo repository.UserRepository, hasher auth.PasswordHasher, users []SeedUserData) (created int, skipped int, err error) {
	for _, item := range users {
		email := model.NormalizeEmail(item.Email)
		if email == "" || item.Password == "" {
			skipped++
			continue
		}

		if _, err := repo.FindByEmail(ctx, email); err == nil {
			skipped++
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			return created, skipped, fmt.Errorf("error checking user %s: %w", email, err)
		}

		hash, err := hasher.Hash(item.Password)
		if err != nil {
			return created, skipped, fmt.Errorf("error hashing password for %s: %w", email, err)
		}

		role := item.Role
		if role == "" {
			role = model.DefaultRole
		}
		user := &model.User{
			Email:        email,
			PasswordHash: hash,
			Verified:     true,
			Role:         role,
			FirstName:    item.FirstName,
			LastName:     item.LastName,
		}
		if _, err := repo.Insert(ctx, user); err != nil {
			if errors.Is(err, repository.ErrAlreadyExists) {
				skipped++
				continue
			}
			return created, skipped, fmt.Errorf("error creating user %s: %w", email, err)
		}
		created++
	}

	return created, skipped, nil
}
