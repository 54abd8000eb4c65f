// Package wbi implements the request signature required by the
// platform's gated web endpoints.
//
// The scheme mixes two opaque keys (img key and sub key, each a
// 32-character hex string harvested from the nav endpoint) into a
// 32-character mixin key via a fixed permutation table, stamps the
// request parameters with a unix timestamp, and appends an MD5 digest
// of the form-encoded parameters under the w_rid key.
//
// Sign is pure: given the same parameters, keys, and timestamp it
// produces byte-identical output. It performs no I/O and never fails;
// key availability must be checked by the caller before signing.
package wbi

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// mixinKeyTable is the fixed index permutation applied to the
// concatenation imgKey+subKey when deriving the mixin key. It is a
// constant of the algorithm, not configuration: every index 0-63
// appears exactly once.
var mixinKeyTable = [64]int{
	46, 47, 18, 2, 53, 8, 23, 32, 15, 50, 10, 31, 58, 3, 45, 35,
	27, 43, 5, 49, 33, 9, 42, 19, 29, 28, 14, 39, 12, 38, 41, 13,
	37, 48, 7, 16, 24, 55, 40, 61, 26, 17, 0, 1, 60, 51, 30, 4,
	22, 25, 54, 21, 56, 59, 6, 63, 57, 62, 11, 36, 20, 34, 44, 52,
}

// unsafeValueChars are stripped from every parameter value before
// encoding. The receiving service rejects signatures computed over
// values containing them.
const unsafeValueChars = "!'()*"

// MixinKey derives the 32-character mixing key from the two session
// keys. Both keys must be the 32-character strings returned by the nav
// endpoint; shorter input is a caller bug.
func MixinKey(imgKey, subKey string) string {
	raw := imgKey + subKey
	var b strings.Builder
	b.Grow(len(mixinKeyTable))
	for _, idx := range mixinKeyTable {
		b.WriteByte(raw[idx])
	}
	return b.String()[:32]
}

// Sign returns a copy of params extended with the wts timestamp and the
// w_rid signature. The input map is not mutated.
//
// Values are filtered of the characters !'()* (filtered, not rejected),
// keys are sorted byte-wise, and the parameter set is form-encoded with
// the platform's expected escaping (space as +) before hashing.
func Sign(params map[string]string, imgKey, subKey string, now time.Time) map[string]string {
	signed := make(map[string]string, len(params)+2)
	for k, v := range params {
		signed[k] = filterValue(v)
	}
	signed["wts"] = strconv.FormatInt(now.Unix(), 10)

	// url.Values.Encode sorts by key and escapes exactly the way the
	// receiving decoder expects.
	vals := make(url.Values, len(signed))
	for k, v := range signed {
		vals.Set(k, v)
	}
	query := vals.Encode()

	sum := md5.Sum([]byte(query + MixinKey(imgKey, subKey)))
	signed["w_rid"] = hex.EncodeToString(sum[:])
	return signed
}

// filterValue drops the characters the signature scheme refuses to
// cover. Everything else passes through unchanged.
func filterValue(v string) string {
	if !strings.ContainsAny(v, unsafeValueChars) {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		if strings.ContainsRune(unsafeValueChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
