package whatssend

import "github.com/ortizmas/whats-send/id"

// ID is the identifier type for whatssend entities (jobs, outcomes).
type ID = id.ID

// Prefix identifies the entity type encoded in an ID.
type Prefix = id.Prefix
