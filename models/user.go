package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	UserRoleUser      = "user"
	UserRoleModerator = "moderator"
	UserRoleAdmin     = "admin"
)

// User defines a user entity
type User struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Email            string             `bson:"email" json:"email"`
	DisplayName      string             `bson:"displayName" json:"displayName"`
	PasswordHash     string             `bson:"passwordHash" json:"-"`
	Role             string             `bson:"role" json:"role"`
	ResetTokenHash   string             `bson:"resetTokenHash,omitempty" json:"-"`
	ResetTokenExpiry *time.Time         `bson:"resetTokenExpiry,omitempty" json:"-"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
}
