package archive

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NewArchiveID generates an archive identifier of the form
// ARC-<base36 millis>-<base36 random>, uppercased. The timestamp component
// keeps IDs roughly sortable by creation time; the random component
// disambiguates archives created in the same millisecond.
func NewArchiveID() string {
	millis := strconv.FormatInt(time.Now().UnixMilli(), 36)

	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a
		// nanosecond suffix rather than panicking in the pipeline.
		return strings.ToUpper(fmt.Sprintf("ARC-%s-%s",
			millis, strconv.FormatInt(int64(time.Now().Nanosecond()), 36)))
	}
	suffix := strconv.FormatUint(uint64(binary.BigEndian.Uint32(buf[:])), 36)

	return strings.ToUpper(fmt.Sprintf("ARC-%s-%s", millis, suffix))
}
