package pow

import "strconv"

// Mask derives the pseudorandom mask binding block index to the challenge:
//
//	mask(seed, index) = H(seedASCII || indexText)
//
// This is the interoperability contract between claimant and verifier and
// is fixed bit-for-bit:
//   - seedASCII is the seed's hex-string bytes exactly as transmitted on
//     the wire (32 ASCII characters), NOT the decoded 16 bytes of entropy;
//   - indexText is the index in canonical base-10 text with no sign,
//     padding, or separators (strconv.Itoa);
//   - the index domain starts at 1: the first block is index 1.
//
// The output is DigestSize bytes and is used only as a mixing input to the
// per-block digest; masks are never derived from previous masks.
func (s Suite) Mask(seed Seed, index int) []byte {
	h := s.New()
	h.Write([]byte(seed))
	h.Write([]byte(strconv.Itoa(index)))
	return h.Sum(nil)
}
