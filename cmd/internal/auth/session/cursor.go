package session

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cursors are opaque to clients: base64url("unixnano:id") over the sort key
// (created_at DESC, id DESC). A malformed cursor is reported as ErrBadCursor,
// never decoded partially.

func encodeCursor(createdAt time.Time, id string) string {
	raw := strconv.FormatInt(createdAt.UTC().UnixNano(), 10) + ":" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (createdAt time.Time, id string, err error) {
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	raw := string(b)
	i := strings.IndexByte(raw, ':')
	if i <= 0 || i == len(raw)-1 {
		return time.Time{}, "", ErrBadCursor
	}
	nanos, err := strconv.ParseInt(raw[:i], 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	return time.Unix(0, nanos).UTC(), raw[i+1:], nil
}
