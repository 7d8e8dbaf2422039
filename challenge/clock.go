package challenge

import "time"

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// Now returns the current time.
func (realClock) Now() time.Time {
	return time.Now()
}
