// Package xid generates the opaque identifiers used for invoice rows
// and export file names. IDs sort roughly by creation time and carry a
// short random tail so two terminals saving in the same second cannot
// collide.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns an identifier like "HD-20240310143005-a1b2c3d4".
func New(prefix string) string {
	stamp := time.Now().UTC().Format("20060102150405")
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%s", prefix, stamp)
	}
	return fmt.Sprintf("%s-%s-%s", prefix, stamp, hex.EncodeToString(buf))
}
