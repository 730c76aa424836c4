package domain

import "time"

// Run identifies one execution of the feature job. Sinks attach it to
// their output so downstream consumers can tell batches apart.
type Run struct {
	ID          string
	GeneratedAt time.Time
}
