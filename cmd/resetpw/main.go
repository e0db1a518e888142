// Command resetpw resets an account password from the server console,
// for when the only admin locked themselves out.
//
// Usage:
//
//	resetpw -db /data/mitabo.db [-promote] user@example.com
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"mitabo/internal/database"
)

func main() {
	dbPath := flag.String("db", "./data/mitabo.db", "path to the SQLite database")
	promote := flag.Bool("promote", false, "also grant the account admin rights")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <email>\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	email := strings.ToLower(strings.TrimSpace(flag.Arg(0)))

	if err := run(*dbPath, email, *promote); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(dbPath, email string, promote bool) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database %s not found", dbPath)
	}

	ctx := context.Background()
	db, err := database.New(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	user, err := findUser(ctx, db, email)
	if err != nil {
		return err
	}

	fmt.Printf("Resetting password for %s (%s)\n", user.Username, user.Email)

	password, err := promptPassword()
	if err != nil {
		return err
	}

	if err := db.UpdatePassword(ctx, user.ID, password); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	fmt.Println("Password updated. All existing sessions were invalidated.")

	if promote && !user.IsAdmin {
		if err := db.PromoteUser(ctx, user.ID); err != nil {
			return fmt.Errorf("failed to promote user: %w", err)
		}
		fmt.Println("Account promoted to admin.")
	}

	return nil
}

func findUser(ctx context.Context, db *database.Database, email string) (*database.User, error) {
	// Accept a username too; operators paste whichever they have.
	user, err := db.GetUserByUsername(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	user, err = db.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("no account matches %q", email)
	}
	return user, err
}

func promptPassword() (string, error) {
	fmt.Print("New password: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Print("Confirm password: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	if len(first) < 6 {
		return "", errors.New("password must be at least 6 characters")
	}
	return string(first), nil
}
