package util

import (
	"strings"

	randomdata "github.com/Pallinder/go-randomdata"
	"github.com/google/uuid"
)

// RandomInterfaceName produces a human-readable, likely-unique name for a
// demo network interface, e.g. "quiet-falcon-a3f1c9de". Used by the demo
// driver so repeated runs don't collide on interface names in logs.
func RandomInterfaceName() string {
	return strings.Join([]string{
		strings.ToLower(randomdata.Adjective()),
		strings.ToLower(randomdata.Noun()),
		uuid.New().String()[0:8],
	}, "-")
}
