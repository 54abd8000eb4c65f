package wbi

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testImgKey = "7cd084941338484aae1ad9425b84077c"
	testSubKey = "4932caff0ff746eab6f01bf08b70ac45"
)

func TestMixinKey(t *testing.T) {
	got := MixinKey(testImgKey, testSubKey)
	require.Len(t, got, 32)
	require.Equal(t, "ea1db124af3c7062474693fa704f4ff8", got)
}

// Golden vectors pin the full signed parameter set byte-for-byte.
// Regenerate with: go test ./internal/wbi -update
func TestSign_GoldenVectors(t *testing.T) {
	g := goldie.New(t)

	vectors := []struct {
		name   string
		params map[string]string
		ts     int64
	}{
		{
			name:   "basic",
			params: map[string]string{"foo": "114", "bar": "514", "zab": "1919810"},
			ts:     1702204169,
		},
		{
			name: "comment",
			params: map[string]string{
				"oid":         "960183791362572289",
				"type":        "17",
				"message":     "so cool! (love it) *wow*",
				"plat":        "1",
				"gaia_source": "main_web",
			},
			ts: 1718432601,
		},
		{
			name: "summary",
			params: map[string]string{
				"bvid":   "BV1x54y1B7RE",
				"cid":    "239927346",
				"up_mid": "258150656",
			},
			ts: 1700000000,
		},
	}

	for _, v := range vectors {
		t.Run(v.name, func(t *testing.T) {
			signed := Sign(v.params, testImgKey, testSubKey, time.Unix(v.ts, 0))
			g.Assert(t, v.name, renderSigned(signed))
		})
	}
}

func TestSign_Deterministic(t *testing.T) {
	params := map[string]string{"foo": "bar", "n": "42"}
	ts := time.Unix(1702204169, 0)

	first := Sign(params, testImgKey, testSubKey, ts)
	second := Sign(params, testImgKey, testSubKey, ts)
	require.Equal(t, first, second)
}

func TestSign_DoesNotMutateInput(t *testing.T) {
	params := map[string]string{"foo": "a!b"}
	_ = Sign(params, testImgKey, testSubKey, time.Unix(1702204169, 0))

	require.Equal(t, map[string]string{"foo": "a!b"}, params)
}

func TestSign_FiltersUnsafeChars(t *testing.T) {
	params := map[string]string{
		"a": "!'()*",
		"b": "keep!me'safe(and)sound*",
		"c": "untouched",
	}
	signed := Sign(params, testImgKey, testSubKey, time.Unix(1702204169, 0))

	for k, v := range signed {
		assert.NotContains(t, v, "!", "key %s", k)
		assert.NotContains(t, v, "'", "key %s", k)
		assert.NotContains(t, v, "(", "key %s", k)
		assert.NotContains(t, v, ")", "key %s", k)
		assert.NotContains(t, v, "*", "key %s", k)
	}
	assert.Equal(t, "", signed["a"])
	assert.Equal(t, "keepmesafeandsound", signed["b"])
	assert.Equal(t, "untouched", signed["c"])
}

func TestSign_AddsTimestampAndSignature(t *testing.T) {
	signed := Sign(map[string]string{"x": "1"}, testImgKey, testSubKey, time.Unix(1700000000, 0))

	require.Equal(t, "1700000000", signed["wts"])
	require.Len(t, signed["w_rid"], 32)
	require.Equal(t, strings.ToLower(signed["w_rid"]), signed["w_rid"])
}

// renderSigned produces a stable line-per-pair rendering for golden
// comparison.
func renderSigned(signed map[string]string) []byte {
	keys := make([]string, 0, len(signed))
	for k := range signed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(signed[k])
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
