package users

import "time"

// User is an account record. Password holds a bcrypt hash and is never
// serialized.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}
