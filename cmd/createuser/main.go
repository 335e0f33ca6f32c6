package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/mzivkovic/wikibin/internal/config"
	"github.com/mzivkovic/wikibin/internal/db"
	"github.com/mzivkovic/wikibin/internal/users"
	"github.com/mzivkovic/wikibin/pkg"
)

// createuser is a one-shot provisioning tool. There is no signup
// endpoint on the service, accounts get created from the shell.
func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development ]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		fmt.Printf("load config: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("=== create new user ===")

	stdinReader := bufio.NewReader(os.Stdin)

	fmt.Print("username: ")
	username, err := stdinReader.ReadString('\n')
	if err != nil {
		fmt.Printf("read username: %s\n", err)
		os.Exit(1)
	}
	username = strings.TrimSpace(username)
	if username == "" {
		fmt.Println("username must not be empty")
		os.Exit(1)
	}

	password, err := readPassword("password: ")
	if err != nil {
		fmt.Printf("read password: %s\n", err)
		os.Exit(1)
	}
	passwordConfirm, err := readPassword("password (again): ")
	if err != nil {
		fmt.Printf("read password confirmation: %s\n", err)
		os.Exit(1)
	}
	if password != passwordConfirm {
		fmt.Println("passwords do not match")
		os.Exit(1)
	}

	fmt.Print("role (admin/user) [user]: ")
	roleInput, err := stdinReader.ReadString('\n')
	if err != nil {
		fmt.Printf("read role: %s\n", err)
		os.Exit(1)
	}
	role := users.Role(strings.TrimSpace(roleInput))
	if role == "" {
		role = users.RoleUser
	}
	if !role.Valid() {
		fmt.Println("role must be admin or user")
		os.Exit(1)
	}

	passwordHash, err := pkg.HashPassword(password)
	if err != nil {
		fmt.Printf("hash password: %s\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost: cfg.PostgresHost,
		DBPort: cfg.PostgresPort,
		DBName: cfg.PostgresDBName,
	})
	if err != nil {
		fmt.Printf("new db pool: %s\n", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	repo := users.NewRepo(dbPool)
	err = repo.Create(ctx, &users.User{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
	})
	switch {
	case errors.Is(err, users.ErrUsernameTaken):
		fmt.Printf("user [%s] already exists\n", username)
		os.Exit(1)
	case err != nil:
		fmt.Printf("create user: %s\n", err)
		os.Exit(1)
	}

	fmt.Printf("user [%s] created (role=%s)\n", username, role)
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return pkg.BytesToString(passwordBytes), nil
}
