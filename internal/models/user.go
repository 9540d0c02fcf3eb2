package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User struct matches the document in MongoDB
type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email       string             `bson:"email" json:"email"`
	Name        string             `bson:"name" json:"name"`
	Password    string             `bson:"password" json:"-"`
	Address     string             `bson:"address" json:"address"` // ledger account, checksummed hex
	AccountRole string             `bson:"accountRole" json:"accountRole"`
	Status      string             `bson:"status" json:"status"` // e.g., "active", "disabled"
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)
