package pow

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/dedupow/libdedupow-go/blocks"
)

// TagHexLen is the length of a tag's wire form in ASCII characters.
const TagHexLen = 2 * DigestSize

// Tag is the content-derived deduplication key: the suite digest of the
// entire content, lowercase hex. It depends only on the content bytes,
// never on names or locations.
type Tag string

// ComputeTag streams the full content through the suite hash and returns
// the digest as a Tag. The content is never held in memory as a whole.
func ComputeTag(suite Suite, src blocks.Source) (Tag, error) {
	rc, err := src.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	h := suite.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", fmt.Errorf("%w: %w", blocks.ErrUnreadable, err)
	}
	return Tag(hex.EncodeToString(h.Sum(nil))), nil
}

// ParseTag validates the wire form of a tag.
func ParseTag(s string) (Tag, error) {
	if len(s) != TagHexLen {
		return "", fmt.Errorf("%w: got %d chars, want %d", ErrInvalidTag, len(s), TagHexLen)
	}
	if !isLowerHex(s) {
		return "", fmt.Errorf("%w: not lowercase hex", ErrInvalidTag)
	}
	return Tag(s), nil
}

// Bytes returns the raw digest the tag encodes.
func (t Tag) Bytes() ([]byte, error) {
	if len(t) != TagHexLen {
		return nil, fmt.Errorf("%w: got %d chars, want %d", ErrInvalidTag, len(t), TagHexLen)
	}
	b, err := hex.DecodeString(string(t))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTag, err)
	}
	return b, nil
}

// Short returns a truncated form of the tag for log lines.
func (t Tag) Short() string {
	if len(t) <= 10 {
		return string(t)
	}
	return string(t[:10]) + "..."
}
