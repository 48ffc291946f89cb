package race

import (
	"time"

	"github.com/google/uuid"

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/models"
)

// AsyncPartDue is one async half whose thread should be opened: the
// start is inside the provisioning window and no thread exists yet.
type AsyncPartDue struct {
	RaceID       uuid.UUID
	Part         models.AsyncPart
	StartTime    time.Time
	AsyncChannel int64
}
