package domain

import (
	"pairchat/errors"
)

// RoomID identifies the canonical channel between exactly two users.
// It is derived on demand and never stored independently.
type RoomID string

const roomSeparator = "_"

// RoomKey derives the room identifier for a pair of users. The two ids are
// ordered lexicographically so that RoomKey(a, b) == RoomKey(b, a).
// A user cannot room with themself.
func RoomKey(userA, userB string) (RoomID, error) {
	if userA == userB {
		return "", errors.ErrSelfRoom
	}
	if userA > userB {
		userA, userB = userB, userA
	}
	return RoomID(userA + roomSeparator + userB), nil
}
