//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"pairchat/domain"
	"pairchat/domain/event"
)

// EventSink is a per-connection delivery handle. Consume must not block the
// caller: implementations buffer and drop rather than stall fan-out.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// AuthVerifier validates a bearer credential presented at handshake time and
// returns the stable identity bound to the connection.
type AuthVerifier interface {
	Verify(ctx context.Context, credential string) (domain.Identity, error)
}

// MessageStore is the durable persistence collaborator. Create must complete
// before any broadcast of the message it returns.
type MessageStore interface {
	Create(ctx context.Context, senderID, receiverID, body string, kind domain.MessageType) (domain.Message, error)
	MarkRead(ctx context.Context, senderID, receiverID string) (int, error)
	UserExists(ctx context.Context, userID string) (bool, error)
	GetUser(ctx context.Context, userID string) (domain.User, error)
}

type WorkerName string

// Worker doesn't protect itself.
// Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker lifecycle
// events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
