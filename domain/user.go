package domain

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a stored user document keyed by email. Extra profile attributes
// sent at first login (name, photo, ...) live in Attributes.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Email      string             `bson:"email"`
	Attributes map[string]any     `bson:",inline"`
}

// MarshalJSON renders the user as a single flat object.
func (u User) MarshalJSON() ([]byte, error) {
	typed := map[string]any{"email": u.Email}
	if !u.ID.IsZero() {
		typed["_id"] = u.ID
	}
	return flatten(u.Attributes, typed)
}

// UnmarshalJSON decodes a user record. email must be a string when present.
func (u *User) UnmarshalJSON(data []byte) error {
	attrs, err := decodeObject(data)
	if err != nil {
		return err
	}
	out := User{ID: takeObjectID(attrs, "_id")}
	if out.Email, _, err = takeString(attrs, "email"); err != nil {
		return err
	}
	if len(attrs) > 0 {
		out.Attributes = attrs
	}
	*u = out
	return nil
}

// InsertResult describes a newly inserted document.
type InsertResult struct {
	Acknowledged bool               `json:"acknowledged"`
	InsertedID   primitive.ObjectID `json:"insertedId"`
}

// DeleteResult describes a delete by id. Owner is the email of the deleted
// task, empty when nothing matched.
type DeleteResult struct {
	Acknowledged bool   `json:"acknowledged"`
	DeletedCount int64  `json:"deletedCount"`
	Owner        string `json:"-"`
}
