package connection

import "time"

type ConnectionCreated struct {
	ConnectionID ID
	Pair         Pair
	Status       Status
	At           time.Time
}

func (e ConnectionCreated) EventName() string     { return "connection.created" }
func (e ConnectionCreated) AggregateID() string   { return string(e.ConnectionID) }
func (e ConnectionCreated) OccurredAt() time.Time { return e.At }

type ConnectionStatusChanged struct {
	ConnectionID ID
	From         Status
	To           Status
	At           time.Time
}

func (e ConnectionStatusChanged) EventName() string     { return "connection.status_changed" }
func (e ConnectionStatusChanged) AggregateID() string   { return string(e.ConnectionID) }
func (e ConnectionStatusChanged) OccurredAt() time.Time { return e.At }

type ConnectionDeleted struct {
	ConnectionID ID
	Pair         Pair
	At           time.Time
}

func (e ConnectionDeleted) EventName() string     { return "connection.deleted" }
func (e ConnectionDeleted) AggregateID() string   { return string(e.ConnectionID) }
func (e ConnectionDeleted) OccurredAt() time.Time { return e.At }
