// createadmin заводит администратора напрямую в БД, минуя API.
//
//	createadmin -username admin -password secret
//	createadmin                  # спросит в терминале
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"slidecraft/config"
	"slidecraft/internal/apperr"
	"slidecraft/internal/db"
	"slidecraft/internal/models"
	"slidecraft/internal/users"
)

func main() {
	username := flag.String("username", "", "admin username")
	password := flag.String("password", "", "admin password (prompted if empty)")
	flag.Parse()

	if err := run(*username, *password); err != nil {
		fmt.Fprintln(os.Stderr, "createadmin:", err)
		os.Exit(1)
	}
}

func run(username, password string) error {
	cfg, err := config.Read()
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}

	in := bufio.NewReader(os.Stdin)
	if username == "" {
		if username, err = prompt(in, "Username: "); err != nil {
			return err
		}
	}
	if password == "" {
		if password, err = promptPassword(in); err != nil {
			return err
		}
	}

	d, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(d); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if sqlDB, err := d.DB(); err == nil {
		defer sqlDB.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc := users.NewService(d, nil)
	u, err := svc.Create(ctx, users.CreateInput{
		Username: username,
		Password: password,
		Role:     models.RoleAdmin,
	})
	if apperr.KindOf(err) == apperr.KindDuplicateUser {
		return fmt.Errorf("user %q already exists", strings.TrimSpace(username))
	}
	if err != nil {
		return err
	}
	fmt.Printf("admin %q created (id %s)\n", u.Username, u.ID)
	return nil
}

func prompt(in *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword без эха, если stdin: терминал; иначе читает строку как есть.
func promptPassword(in *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(in, "")
	}
	fmt.Print("Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	fmt.Print("Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
