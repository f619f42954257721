package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"pairchat/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

// Config keeps the viewer self-contained so it can run next to a live
// server without the server's required variables.
type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH"`
	// Room narrows the scan to one conversation key, e.g. "alice_bob"
	Room string `envconfig:"VIEWER_ROOM"`
	// VIEWER_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"VIEWER_COLOURS" default:"true"`
}

func main() {
	// 1. Load config
	_ = godotenv.Load()
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if config.BadgerFilepath == "" {
		config.BadgerFilepath = database.DefaultPath
	}

	// 2. Open Badger in Read-Only mode
	// Note: BypassLockGuard allows opening if another process (the server) holds the lock
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	header := fmt.Sprintf("  ====== pairchat viewer (%s) ======", config.BadgerFilepath)
	if config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	fmt.Println(header)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Room", "Time", "Sender", "Receiver", "Read", "Message"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	prefix := "msg:"
	if config.Room != "" {
		prefix = fmt.Sprintf("msg:%s:", config.Room)
	}

	var total, unread int
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())

			err := item.Value(func(v []byte) error {
				var m domain.Message
				if err := json.Unmarshal(v, &m); err != nil {
					// Log the broken row and keep scanning instead of aborting the whole dump
					fmt.Printf("Error unmarshaling key %s: %v\n", rawKey, err)
					return nil
				}

				total++
				read := "yes"
				if !m.IsRead {
					unread++
					read = "no"
				}

				table.Append([]string{
					roomOf(rawKey),
					m.CreatedAt.Format("2006-01-02 15:04:05"),
					m.SenderID,
					m.ReceiverID,
					read,
					m.Body,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()

	summary := fmt.Sprintf("%d messages, %d unread", total, unread)
	if config.Colours {
		summary = color.New(color.FgYellow).Render(summary)
	}
	fmt.Println(summary)
}

// roomOf extracts the conversation key from "msg:{room}:{ts}:{uuid}".
func roomOf(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 {
		return key
	}
	return parts[1]
}
