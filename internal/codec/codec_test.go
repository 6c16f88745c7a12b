package codec

import (
	"bytes"
	"crypto/des"
	"testing"
)

func testKey() Key {
	return AdjustParity([]byte("SECRET__"))
}

// TestRoundTrip verifies decrypt(encrypt(p,k),k) == p for a range of
// payload lengths, including the (len+4) mod 8 == 0 boundary.
func TestRoundTrip(t *testing.T) {
	key := testKey()

	lengths := []int{0, 1, 4, 12, 20, 60, 100, 1500, MaxPayload}
	for _, n := range lengths {
		payload := bytes.Repeat([]byte{0xAA}, n)
		ct, err := Encrypt(payload, key)
		if err != nil {
			t.Fatalf("Encrypt(len=%d): %v", n, err)
		}
		if len(ct)%8 != 0 || len(ct) == 0 {
			t.Fatalf("Encrypt(len=%d): ciphertext length %d is not a positive multiple of 8", n, len(ct))
		}

		pt, err := Decrypt(ct, key)
		if err != nil {
			t.Fatalf("Decrypt(len=%d): %v", n, err)
		}
		if !bytes.Equal(pt, payload) {
			t.Fatalf("round trip mismatch for len=%d: got %d bytes, want %d", n, len(pt), len(payload))
		}
	}
}

// TestPaddingBoundaryAddsFullBlock pins the §9 open-question resolution:
// when (payloadLen+4) is already a multiple of 8, Encrypt must still add
// a full extra 8-byte block rather than reuse the boundary length.
func TestPaddingBoundaryAddsFullBlock(t *testing.T) {
	key := testKey()

	for _, n := range []int{4, 12, 20, 28} {
		if (n+4)%8 != 0 {
			t.Fatalf("test setup bug: len=%d does not sit on the boundary", n)
		}
		payload := bytes.Repeat([]byte{0x01}, n)
		ct, err := Encrypt(payload, key)
		if err != nil {
			t.Fatalf("Encrypt(len=%d): %v", n, err)
		}
		want := n + 4 + 8
		if len(ct) != want {
			t.Errorf("len=%d: ciphertext length = %d, want %d (full extra block)", n, len(ct), want)
		}
	}
}

// TestDecryptRejectsShortOrUnalignedCiphertext.
func TestDecryptRejectsShortOrUnalignedCiphertext(t *testing.T) {
	key := testKey()

	cases := [][]byte{
		nil,
		{},
		{1, 2, 3, 4, 5, 6, 7}, // 7 bytes, not a multiple of 8
		{1, 2, 3, 4, 5, 6, 7, 8, 9}, // 9 bytes
	}
	for _, c := range cases {
		if _, err := Decrypt(c, key); err == nil {
			t.Errorf("Decrypt(%d bytes): expected error, got nil", len(c))
		}
	}
}

// TestDecryptExactlyOneBlock covers the §9 note: an 8-byte ciphertext
// whose prefix declares 4 bytes decodes to exactly those 4 payload bytes
// and must not be rejected. Encrypt never emits such a block (4 bytes
// sit on the padding boundary), so the block is built by hand.
func TestDecryptExactlyOneBlock(t *testing.T) {
	key := testKey()

	block, err := des.NewCipher(key[:])
	if err != nil {
		t.Fatalf("des.NewCipher: %v", err)
	}

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	plain := append([]byte{0, 0, 0, byte(len(payload))}, payload...)
	if len(plain) != des.BlockSize {
		t.Fatalf("test setup bug: plaintext is %d bytes, want one block", len(plain))
	}
	ct := make([]byte, des.BlockSize)
	block.Encrypt(ct, plain)

	pt, err := Decrypt(ct, key)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(pt, payload) {
		t.Fatalf("got %v, want %v", pt, payload)
	}
}

// TestDecryptRejectsOversizedDeclaredLength simulates a corrupted or
// malicious length prefix surviving decryption by encrypting a
// hand-crafted plaintext block whose prefix lies about its own length.
func TestDecryptRejectsOversizedDeclaredLength(t *testing.T) {
	key := testKey()

	block, err := des.NewCipher(key[:])
	if err != nil {
		t.Fatalf("des.NewCipher: %v", err)
	}

	plain := make([]byte, 8)
	plain[0], plain[1], plain[2], plain[3] = 0, 0, 0xFF, 0xFF // declares 65535 bytes, buffer only has 4
	ct := make([]byte, 8)
	block.Encrypt(ct, plain)

	if _, err := Decrypt(ct, key); err == nil {
		t.Fatal("expected ErrCodec for an oversized declared length, got nil")
	}
}

// TestPassthroughIsIdentity verifies the no-key path does not alter or
// prefix the payload.
func TestPassthroughIsIdentity(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	out := Passthrough(payload)
	if !bytes.Equal(out, payload) {
		t.Fatalf("Passthrough altered payload: got %v, want %v", out, payload)
	}
}

// TestAdjustParitySetsOddParity checks that every key byte carries odd
// parity in its low bit after adjustment, matching des_setparity.
func TestAdjustParitySetsOddParity(t *testing.T) {
	k := AdjustParity([]byte{0x00, 0xFF, 0xAA, 0x55, 0x01, 0x80, 0x7F, 0xC3})
	for i, b := range k {
		ones := 0
		for shift := 0; shift < 8; shift++ {
			if b&(1<<uint(shift)) != 0 {
				ones++
			}
		}
		if ones%2 == 0 {
			t.Errorf("byte %d (%#02x) does not have odd parity", i, b)
		}
	}
}

func TestEncryptRejectsOversizedPayload(t *testing.T) {
	key := testKey()
	if _, err := Encrypt(make([]byte, MaxPayload+1), key); err == nil {
		t.Fatal("expected error for oversized payload")
	}
}
