package remind

import "github.com/Pasan-pramu/remind/id"

// ID is the primary identifier type for all Remind entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
