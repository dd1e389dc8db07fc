package service

import "time"

// Clock supplies the current instant. Injected so attempt timing is
// deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
