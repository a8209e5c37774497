package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"swar/internal/identity"
	"swar/internal/mail"
)

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	dbPath := cli.String("db", "", "User database (default USERS_DB or users.db)")
	name := cli.StringP("name", "n", "", "Display name")
	email := cli.String("email", "", "Login email, the user key")
	pin := cli.String("pin", "", "Numeric PIN")
	face := cli.StringP("face", "f", "", "Face image (jpeg or png)")
	mailAddr := cli.String("mail-address", "", "Mailbox address")
	mailPass := cli.String("mail-password", "", "Mailbox app password (default MAIL_PASSWORD)")
	update := cli.Bool("update", false, "Only update the mailbox credentials of an existing user")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stderr, nil)))

	_ = godotenv.Load(*envFile)
	if *dbPath == "" {
		*dbPath = os.Getenv("USERS_DB")
	}
	if *dbPath == "" {
		*dbPath = "users.db"
	}
	if *mailPass == "" {
		*mailPass = os.Getenv("MAIL_PASSWORD")
	}

	dir, err := identity.Open(*dbPath, identity.HistogramMatcher{}, identity.DefaultThreshold)
	if err != nil {
		log.Error("Failed to open user directory", "err", err)
		os.Exit(1)
	}
	defer dir.Close()

	ctx := context.Background()
	acct := mail.Account{Address: *mailAddr, Password: *mailPass}

	if *update {
		if err := dir.UpdateCredentials(ctx, *email, acct); err != nil {
			log.Error("Failed to update credentials", "email", *email, "err", err)
			os.Exit(1)
		}
		log.Info("Credentials updated", "email", *email)
		return
	}

	if *face == "" {
		log.Error("--face is required to enroll")
		os.Exit(2)
	}
	img, err := identity.LoadImage(*face)
	if err != nil {
		log.Error("Failed to read face image", "err", err)
		os.Exit(1)
	}

	id, err := dir.Add(ctx, identity.User{Name: *name, Email: *email, PIN: *pin, Mail: acct}, img)
	if err != nil {
		log.Error("Failed to enroll", "err", err)
		os.Exit(1)
	}
	log.Info("Enrolled", "id", id, "name", *name, "email", *email)
}
