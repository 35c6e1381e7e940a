package ibk

import (
	"time"

	"github.com/google/uuid"
)

// Clock stamps run start times and each entry's backed_up_at.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator mints the backup_id recorded when a destination's manifest is
// first created.
type IDGenerator interface {
	New() string
}

// UUIDGenerator mints random (version 4) UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
