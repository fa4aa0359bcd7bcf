package attr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortedKeys(t *testing.T) {
	m := Map{"z": Int(1), "a": Int(2), "m": Int(3)}

	data, err := MarshalCanonical(m)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"m":3,"z":1}`, string(data))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	data, err := MarshalCanonical(String(`<b>&"x"</b>`))
	require.NoError(t, err)
	assert.Equal(t, `"<b>&\"x\"</b>"`, string(data))
}

func TestMarshalCanonical_ControlCharacters(t *testing.T) {
	data, err := MarshalCanonical(String("a\nb\tcd"))
	require.NoError(t, err)
	assert.Equal(t, `"a\nb\tcd"`, string(data))
}

func TestMarshalCanonical_LineSeparatorsNotEscaped(t *testing.T) {
	// RFC 8785: U+2028 and U+2029 pass through as literal characters.
	data, err := MarshalCanonical(String("a b c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a b c\"", string(data))
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// "e" + combining acute accent normalizes to precomposed U+00E9.
	decomposed := String("café")
	precomposed := String("café")

	d1, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	d2, err := MarshalCanonical(precomposed)
	require.NoError(t, err)
	assert.Equal(t, string(d2), string(d1))
}

func TestMarshalCanonical_Floats(t *testing.T) {
	data, err := MarshalCanonical(Float(0.5))
	require.NoError(t, err)
	assert.Equal(t, "0.5", string(data))

	data, err = MarshalCanonical(Float(10))
	require.NoError(t, err)
	assert.Equal(t, "10", string(data))
}

func TestMarshalCanonical_Nested(t *testing.T) {
	m := Map{
		"list": List{Int(1), Bool(true), String("x")},
		"obj":  Map{"inner": Float(2.5)},
	}

	data, err := MarshalCanonical(m)
	require.NoError(t, err)
	assert.Equal(t, `{"list":[1,true,"x"],"obj":{"inner":2.5}}`, string(data))
}

func TestMarshalCanonical_NilValueRejected(t *testing.T) {
	_, err := MarshalCanonical(Map{"k": nil})
	assert.Error(t, err)
}
