package quietcrypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventID(t *testing.T) {
	t.Run("DeterministicAndContentAddressed", func(t *testing.T) {
		a, err := EventID([]byte("ciphertext-a"))
		require.NoError(t, err)
		b, err := EventID([]byte("ciphertext-a"))
		require.NoError(t, err)
		c, err := EventID([]byte("ciphertext-b"))
		require.NoError(t, err)

		assert.Equal(t, a, b)
		assert.NotEqual(t, a, c)
		assert.Len(t, a, 32) // 16 bytes, hex-encoded
	})
}

func TestCanonicalizeEvent(t *testing.T) {
	t.Run("StripsSignatureAndSortsKeys", func(t *testing.T) {
		withSig := map[string]interface{}{
			"type":      "message",
			"body":      "hi",
			"signature": "should-not-appear",
		}
		withoutSig := map[string]interface{}{
			"body": "hi",
			"type": "message",
		}

		a, err := CanonicalizeEvent(withSig)
		require.NoError(t, err)
		b, err := CanonicalizeEvent(withoutSig)
		require.NoError(t, err)

		assert.Equal(t, string(b), string(a))
		assert.NotContains(t, string(a), "should-not-appear")
	})
}

func TestSignAndVerify(t *testing.T) {
	pub, priv, err := GenerateIdentityKeyPair()
	require.NoError(t, err)

	msg := []byte("canonical event bytes")
	sig := Sign(priv, msg)

	t.Run("ValidSignatureVerifies", func(t *testing.T) {
		assert.NoError(t, Verify(pub, msg, sig))
	})

	t.Run("TamperedMessageFailsVerification", func(t *testing.T) {
		err := Verify(pub, []byte("different bytes"), sig)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}

func TestSealAndOpen(t *testing.T) {
	key, err := GenerateSymmetricKey()
	require.NoError(t, err)

	plaintext := []byte("transit datagram payload")

	t.Run("RoundTrips", func(t *testing.T) {
		sealed, err := Seal(key, plaintext, nil)
		require.NoError(t, err)

		opened, err := Open(key, sealed, nil)
		require.NoError(t, err)
		assert.Equal(t, plaintext, opened)
	})

	t.Run("WrongKeyFailsToOpen", func(t *testing.T) {
		sealed, err := Seal(key, plaintext, nil)
		require.NoError(t, err)

		wrongKey, err := GenerateSymmetricKey()
		require.NoError(t, err)

		_, err = Open(wrongKey, sealed, nil)
		assert.Error(t, err)
	})
}

func TestTransitDatagram(t *testing.T) {
	key, err := GenerateSymmetricKey()
	require.NoError(t, err)
	keyID, err := EventID(key)
	require.NoError(t, err)
	var id [16]byte
	copy(id[:], []byte(keyID)[:16])

	datagram, err := SealTransit(id, key, []byte("hello peer"))
	require.NoError(t, err)

	t.Run("KeyIDExtractableWithoutKey", func(t *testing.T) {
		extracted, err := TransitKeyID(datagram)
		require.NoError(t, err)
		assert.Equal(t, id, extracted)
	})

	t.Run("OpensWithMatchingKey", func(t *testing.T) {
		plaintext, err := OpenTransit(key, datagram)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello peer"), plaintext)
	})
}

func TestSealedBoxToEd25519(t *testing.T) {
	pub, priv, err := GenerateIdentityKeyPair()
	require.NoError(t, err)

	plaintext := []byte("sync_request body")

	t.Run("RoundTrips", func(t *testing.T) {
		sealed, err := SealToEd25519(pub, plaintext)
		require.NoError(t, err)

		opened, err := UnsealFromEd25519(priv, sealed)
		require.NoError(t, err)
		assert.Equal(t, plaintext, opened)
	})

	t.Run("WrongRecipientCannotOpen", func(t *testing.T) {
		_, otherPriv, err := GenerateIdentityKeyPair()
		require.NoError(t, err)

		sealed, err := SealToEd25519(pub, plaintext)
		require.NoError(t, err)

		_, err = UnsealFromEd25519(otherPriv, sealed)
		assert.Error(t, err)
	})
}

func TestKDFDeterministic(t *testing.T) {
	secret := []byte("invite-secret-bytes-000000000000")
	salt := []byte("quiet_invite_kdf_v1")

	a, err := KDF(secret, salt, 32)
	require.NoError(t, err)
	b, err := KDF(secret, salt, 32)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}
