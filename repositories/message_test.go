package repositories

import (
	"context"
	"log/slog"
	"testing"

	"pairchat/domain"

	"github.com/mama165/sdk-go/database"
	"github.com/stretchr/testify/require"
)

func Test_Create_And_History_Newest_First(t *testing.T) {
	req := require.New(t)
	_, _, badgerDB, blugeWriter, err := database.SetupBenchmark(t.TempDir())
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	repository := NewMessageRepository(badgerDB, slog.Default(), nil)
	ctx := context.Background()

	bodies := []string{"first", "second", "third"}
	for _, body := range bodies {
		_, err := repository.Create(ctx, "alice", "bob", body, domain.MessageTypeText)
		req.NoError(err)
	}

	room, err := domain.RoomKey("alice", "bob")
	req.NoError(err)

	// When fetching the conversation
	fetched, _, err := repository.History(ctx, room, nil)
	req.NoError(err)

	// Then messages come back newest first
	req.Len(fetched, 3)
	req.Equal("third", fetched[0].Body)
	req.Equal("second", fetched[1].Body)
	req.Equal("first", fetched[2].Body)
	req.False(fetched[0].IsRead)
}

func Test_History_Pagination_With_Cursor(t *testing.T) {
	req := require.New(t)
	_, _, badgerDB, blugeWriter, err := database.SetupBenchmark(t.TempDir())
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	limit := 2
	repository := NewMessageRepository(badgerDB, slog.Default(), &limit)
	ctx := context.Background()

	for _, body := range []string{"one", "two", "three", "four", "five"} {
		_, err := repository.Create(ctx, "alice", "bob", body, domain.MessageTypeText)
		req.NoError(err)
	}

	room, err := domain.RoomKey("alice", "bob")
	req.NoError(err)

	// First page: the two newest
	page1, cursor, err := repository.History(ctx, room, nil)
	req.NoError(err)
	req.Len(page1, 2)
	req.Equal("five", page1[0].Body)
	req.Equal("four", page1[1].Body)
	req.NotNil(cursor)

	// Second page resumes past the cursor without repeating it
	page2, cursor, err := repository.History(ctx, room, cursor)
	req.NoError(err)
	req.Len(page2, 2)
	req.Equal("three", page2[0].Body)
	req.Equal("two", page2[1].Body)

	// Last page holds the remainder
	page3, _, err := repository.History(ctx, room, cursor)
	req.NoError(err)
	req.Len(page3, 1)
	req.Equal("one", page3[0].Body)
}

func Test_MarkRead_Is_Directional(t *testing.T) {
	req := require.New(t)
	_, _, badgerDB, blugeWriter, err := database.SetupBenchmark(t.TempDir())
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	repository := NewMessageRepository(badgerDB, slog.Default(), nil)
	ctx := context.Background()

	// Given traffic in both directions
	_, err = repository.Create(ctx, "alice", "bob", "hello bob", domain.MessageTypeText)
	req.NoError(err)
	_, err = repository.Create(ctx, "alice", "bob", "still there?", domain.MessageTypeText)
	req.NoError(err)
	_, err = repository.Create(ctx, "bob", "alice", "hey alice", domain.MessageTypeText)
	req.NoError(err)

	// When bob reads alice's messages
	count, err := repository.MarkRead(ctx, "alice", "bob")
	req.NoError(err)
	req.Equal(2, count)

	// Then only that direction flipped
	room, err := domain.RoomKey("alice", "bob")
	req.NoError(err)
	fetched, _, err := repository.History(ctx, room, nil)
	req.NoError(err)
	for _, message := range fetched {
		if message.SenderID == "alice" {
			req.True(message.IsRead)
		} else {
			req.False(message.IsRead)
		}
	}

	// And bob's own message to alice stays pending
	unreadAlice, err := repository.UnreadCount(ctx, "alice")
	req.NoError(err)
	req.Equal(1, unreadAlice)

	unreadBob, err := repository.UnreadCount(ctx, "bob")
	req.NoError(err)
	req.Zero(unreadBob)

	// Marking again is a no-op
	count, err = repository.MarkRead(ctx, "alice", "bob")
	req.NoError(err)
	req.Zero(count)
}

func Test_UnreadCount_Spans_All_Senders(t *testing.T) {
	req := require.New(t)
	_, _, badgerDB, blugeWriter, err := database.SetupBenchmark(t.TempDir())
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	repository := NewMessageRepository(badgerDB, slog.Default(), nil)
	ctx := context.Background()

	_, err = repository.Create(ctx, "alice", "carol", "from alice", domain.MessageTypeText)
	req.NoError(err)
	_, err = repository.Create(ctx, "bob", "carol", "from bob", domain.MessageTypeText)
	req.NoError(err)

	count, err := repository.UnreadCount(ctx, "carol")
	req.NoError(err)
	req.Equal(2, count)
}

func Test_Create_Rejects_Self_Conversation(t *testing.T) {
	req := require.New(t)
	_, _, badgerDB, blugeWriter, err := database.SetupBenchmark(t.TempDir())
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	repository := NewMessageRepository(badgerDB, slog.Default(), nil)

	_, err = repository.Create(context.Background(), "alice", "alice", "hi", domain.MessageTypeText)
	req.Error(err)
}
