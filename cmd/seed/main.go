package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"pairchat/auth"
	"pairchat/domain"
	"pairchat/internal"
	"pairchat/repositories"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

// Seeds a demo dataset: two accounts and a short conversation, so the
// server can be explored without registering by hand.
func main() {
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		log.Fatalf("Failed to open bluge writer: %v", err)
	}
	defer blugeWriter.Close()

	logger := slog.Default()
	users := repositories.NewUserRepository(db)
	messages := repositories.NewMessageRepository(db, logger, nil)
	index := repositories.NewMessageIndex(blugeWriter, logger)
	store := repositories.NewStore(messages, users, index, logger)

	ctx := context.Background()
	fmt.Println("Seeding demo accounts...")

	alice := mustUser(ctx, users, "alice", "alice@example.com", "AliceDemoPass123!")
	bob := mustUser(ctx, users, "bob", "bob@example.com", "BobDemoPass123!")

	conversation := []struct {
		from, to, body string
	}{
		{alice.ID, bob.ID, "hey, are you around?"},
		{bob.ID, alice.ID, "yep, just got back"},
		{alice.ID, bob.ID, "lunch at the harbor tomorrow?"},
		{bob.ID, alice.ID, "works for me, noon?"},
	}
	for _, m := range conversation {
		if _, err := store.Create(ctx, m.from, m.to, m.body, domain.MessageTypeText); err != nil {
			log.Fatalf("Failed to seed message: %v", err)
		}
	}

	fmt.Printf("Done: alice=%s bob=%s, %d messages\n", alice.ID, bob.ID, len(conversation))
	fmt.Println("Log in with alice@example.com / AliceDemoPass123!")
}

func mustUser(ctx context.Context, users repositories.IUserRepository, username, email, password string) domain.User {
	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	user, err := users.CreateUser(ctx, username, email, hash)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", username, err)
	}
	return user
}
