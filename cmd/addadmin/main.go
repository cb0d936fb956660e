package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"debatehub/config"
	"debatehub/db"
	"debatehub/logger"
	"debatehub/models"
	"debatehub/utils"
)

func main() {
	email := flag.String("email", "", "User email (required)")
	password := flag.String("password", "", "Password, only used when the account does not exist yet")
	name := flag.String("name", "", "Display name for a new account")
	role := flag.String("role", models.UserRoleAdmin, "Role to grant: 'admin' or 'moderator'")
	configPath := flag.String("config", "config/config.prod.yml", "Path to config file")
	flag.Parse()

	if *email == "" {
		fmt.Println("Error: email is required")
		fmt.Println("\nUsage:")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *role != models.UserRoleAdmin && *role != models.UserRoleModerator {
		fmt.Println("Error: role must be 'admin' or 'moderator'")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewLogger("addadmin", cfg.Log.Level)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, database, err := db.ConnectMongoDB(ctx, cfg.Database.URI)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())
	store := db.NewMongoStore(client, database)

	addr := strings.ToLower(strings.TrimSpace(*email))
	user, err := store.GetUserByEmail(ctx, addr)
	switch {
	case err == nil:
		user.Role = *role
		if err := store.UpdateUser(ctx, user); err != nil {
			log.WithError(err).Fatal("failed to update user")
		}
		log.WithField("email", addr).Infof("granted role %s", *role)

	case errors.Is(err, db.ErrNotFound):
		if len(*password) < 8 {
			log.Fatal("a password of at least 8 characters is required for a new account")
		}
		hash, err := utils.HashPassword(*password)
		if err != nil {
			log.WithError(err).Fatal("failed to hash password")
		}
		displayName := *name
		if displayName == "" {
			displayName = utils.ExtractNameFromEmail(addr)
		}
		user = &models.User{
			Email:        addr,
			DisplayName:  displayName,
			PasswordHash: hash,
			Role:         *role,
			CreatedAt:    time.Now(),
		}
		if err := store.InsertUser(ctx, user); err != nil {
			log.WithError(err).Fatal("failed to create user")
		}
		log.WithField("email", addr).Infof("created %s account", *role)

	default:
		log.WithError(err).Fatal("database error")
	}
}
