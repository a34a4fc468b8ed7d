package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a random identifier such as "shf-5f0c...".
func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
