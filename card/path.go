package card

import (
	"encoding/hex"
	"strings"
)

// ParsePath turns a slash-separated hex path such as "3F00/006E/0073/00C4"
// into a sequence of 2-byte DO tags, as used by SelectFile and in the
// testable-properties scenarios of spec.md §8.
func ParsePath(s string) ([]uint16, error) {
	if s == "" {
		return nil, nil
	}
	segs := strings.Split(s, "/")
	tags := make([]uint16, 0, len(segs))
	for _, seg := range segs {
		b, err := hex.DecodeString(seg)
		if err != nil || len(b) != 2 {
			return nil, ErrInvalidArguments
		}
		tags = append(tags, uint16(b[0])<<8|uint16(b[1]))
	}
	return tags, nil
}
