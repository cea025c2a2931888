package stubserver

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SeedPassword is the password of every seeded account, for development
// logins.
const SeedPassword = "vicinity-dev"

// Seed populates the store with fake accounts and posts. It is a no-op when
// accounts already exist.
func Seed(store *Store, postCount int) error {
	existing, err := store.CountUsers()
	if err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	gofakeit.Seed(time.Now().UnixNano())
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	hashed, err := bcrypt.GenerateFromPassword([]byte(SeedPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	users := make([]*User, 0, 8)
	for i := 0; i < 8; i++ {
		u := &User{
			ID:       uuid.NewString(),
			Email:    fmt.Sprintf("user%d@vicinity.dev", i+1),
			Password: string(hashed),
			Nickname: gofakeit.Username(),
			Avatar:   fmt.Sprintf("https://picsum.photos/seed/%s/200/200", gofakeit.UUID()),
		}
		if err := store.CreateUser(u); err != nil {
			return err
		}
		users = append(users, u)
	}

	for i := 0; i < postCount; i++ {
		author := users[r.Intn(len(users))]
		p := &Post{
			ID:          uuid.NewString(),
			Title:       gofakeit.Sentence(5),
			Description: gofakeit.Paragraph(1, 3, 8, "\n"),
			Location:    seedCities[r.Intn(len(seedCities))],
			Images:      fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID()),
			Shares:      r.Intn(40),
			UserID:      author.ID,
			CreatedAt:   time.Now().Add(-time.Duration(r.Intn(90*24)) * time.Hour),
		}
		if err := store.CreatePost(p); err != nil {
			return err
		}
	}

	log.Printf("Seeded %d users and %d posts (password %q)", len(users), postCount, SeedPassword)
	return nil
}
