package domain

import "time"

type User struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
	CreatedAt time.Time
}

func (u User) Profile() ActorProfile {
	return ActorProfile{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}
}

// APIKey authenticates inbound requests. UserID links the key to the user all
// mutations performed with it are attributed to; a nil UserID key acts as the
// system actor.
type APIKey struct {
	TokenHash string
	UserID    *int64
	Name      string
	Active    bool
	CreatedAt time.Time
}
