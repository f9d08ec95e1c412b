package secretbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	keyA = "6368616e676520746869732070617373776f726420746f206120736563726574"
	keyB = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
)

func TestSealOpen_Roundtrip(t *testing.T) {
	box, err := New(keyA)
	require.NoError(t, err)

	sealed, err := box.Seal("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "JBSWY3DPEHPK3PXP")

	opened, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", opened)
}

func TestSeal_NoncesMakeCiphertextsDiffer(t *testing.T) {
	box, err := New(keyA)
	require.NoError(t, err)

	a, err := box.Seal("same")
	require.NoError(t, err)
	b, err := box.Seal("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestOpen_WrongKey_Fails(t *testing.T) {
	boxA, err := New(keyA)
	require.NoError(t, err)
	boxB, err := New(keyB)
	require.NoError(t, err)

	sealed, err := boxA.Seal("secret")
	require.NoError(t, err)

	_, err = boxB.Open(sealed)
	assert.Error(t, err)
}

func TestOpen_GarbageInput_Fails(t *testing.T) {
	box, err := New(keyA)
	require.NoError(t, err)

	_, err = box.Open("not base64 !!!")
	assert.Error(t, err)

	_, err = box.Open("c2hvcnQ=") // valid base64, shorter than a nonce
	assert.Error(t, err)
}

func TestNew_RejectsBadKeys(t *testing.T) {
	_, err := New("abc")
	assert.Error(t, err, "too short")

	_, err = New("zz02030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f00")
	assert.Error(t, err, "not hex")
}
