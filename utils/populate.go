package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"debatehub/db"
	"debatehub/models"
)

const testUserPassword = "password123"

// PopulateTestUsers creates the demo accounts used in local development. Existing
// accounts are left untouched. Every account gets the password "password123".
func PopulateTestUsers(ctx context.Context, store db.Store) (int, error) {
	testUsers := []models.User{
		{Email: "user1@example.com", DisplayName: "DebateMaster", Role: models.UserRoleUser},
		{Email: "user2@example.com", DisplayName: "LogicLord", Role: models.UserRoleUser},
		{Email: "moderator@example.com", DisplayName: "FairChair", Role: models.UserRoleModerator},
	}

	hash, err := HashPassword(testUserPassword)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, user := range testUsers {
		_, err := store.GetUserByEmail(ctx, user.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, db.ErrNotFound) {
			return created, fmt.Errorf("failed to look up %s: %w", user.Email, err)
		}

		user.PasswordHash = hash
		user.CreatedAt = time.Now()
		if err := store.InsertUser(ctx, &user); err != nil {
			return created, fmt.Errorf("failed to insert %s: %w", user.Email, err)
		}
		created++
	}
	return created, nil
}
