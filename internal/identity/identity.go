package identity

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"nord/internal/models"

	"github.com/google/uuid"
)

var adjectives = []string{
	"Cool", "Swift", "Brave", "Clever", "Mighty",
	"Noble", "Quick", "Smart", "Bold", "Wild",
}

var nouns = []string{
	"Dragon", "Phoenix", "Tiger", "Wolf", "Eagle",
	"Lion", "Fox", "Bear", "Hawk", "Raven",
}

type persistence interface {
	LoadIdentity() (models.User, error)
	SaveIdentity(user models.User) error
}

// GetOrCreate returns the locally persisted identity, generating and
// storing a fresh one on first run. The id is stable for the lifetime
// of the install.
func GetOrCreate(db persistence) (models.User, error) {
	user, err := db.LoadIdentity()
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return models.User{}, err
	}

	user = models.User{
		ID:        uuid.NewString(),
		Username:  GenerateUsername(),
		Status:    models.UserStatusOnline,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := db.SaveIdentity(user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Update persists an explicit profile change.
func Update(db persistence, user models.User) error {
	return db.SaveIdentity(user)
}

// GenerateUsername builds a readable random handle like "SwiftRaven42".
func GenerateUsername() string {
	adjective := adjectives[rand.Intn(len(adjectives))]
	noun := nouns[rand.Intn(len(nouns))]
	return fmt.Sprintf("%s%s%d", adjective, noun, rand.Intn(9999))
}
