package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_KeyOrdering(t *testing.T) {
	b, err := marshalCanonical(map[string]any{
		"zed":   int64(1),
		"alpha": int64(2),
		"mid":   int64(3),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mid":3,"zed":1}`, string(b))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	b, err := marshalCanonical(map[string]any{"desc": "a<b>&c"})
	require.NoError(t, err)
	assert.Equal(t, `{"desc":"a<b>&c"}`, string(b))
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// "é" precomposed vs decomposed must serialize identically.
	precomposed, err := marshalCanonical("café")
	require.NoError(t, err)
	decomposed, err := marshalCanonical("café")
	require.NoError(t, err)
	assert.Equal(t, precomposed, decomposed)
}

func TestMarshalCanonical_LineSeparatorsLiteral(t *testing.T) {
	b, err := marshalCanonical("a b c")
	require.NoError(t, err)
	assert.Equal(t, "\"a b c\"", string(b))
}

func TestMarshalCanonical_EscapedBackslashBeforeU2028Preserved(t *testing.T) {
	// A literal backslash followed by the text "u2028" must stay escaped.
	b, err := marshalCanonical(`\u2028`)
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(b))
}

func TestMarshalCanonical_Rejections(t *testing.T) {
	_, err := marshalCanonical(nil)
	assert.Error(t, err, "null must be rejected")

	_, err = marshalCanonical(map[string]any{"x": nil})
	assert.Error(t, err)

	_, err = marshalCanonical(3.14)
	assert.Error(t, err, "floats must be rejected")

	_, err = marshalCanonical(struct{}{})
	assert.Error(t, err, "arbitrary structs must be rejected")
}

func TestCompareUTF16_SupplementaryPlane(t *testing.T) {
	// U+FF61 (halfwidth ideographic full stop) is a single code unit
	// 0xFF61; U+1D306 encodes as surrogates starting 0xD834. UTF-16
	// ordering puts the surrogate pair first, unlike UTF-8 byte order.
	assert.Negative(t, compareUTF16("\U0001D306", "｡"))
	assert.Positive(t, compareUTF16("｡", "\U0001D306"))
	assert.Zero(t, compareUTF16("abc", "abc"))
}
