package blobvault

import (
	"bytes"
	"io"
	"testing"

	"github.com/strata-db/strata/pkg/cipher"
)

func TestEncryptedStreamRoundTrip(t *testing.T) {
	provider, err := cipher.NewAESCTRProvider(make([]byte, 16))
	if err != nil {
		t.Fatalf("NewAESCTRProvider: %v", err)
	}

	plaintext := []byte("blob payload that spans more than one AES block boundary")

	var encoded bytes.Buffer
	w, err := NewEncryptedWriter(&encoded, provider, 9, 42)
	if err != nil {
		t.Fatalf("NewEncryptedWriter: %v", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if encoded.Len() != len(plaintext) {
		t.Fatalf("ciphertext length %d, want %d", encoded.Len(), len(plaintext))
	}
	if bytes.Equal(encoded.Bytes(), plaintext) {
		t.Fatal("ciphertext equals plaintext")
	}

	r, err := NewEncryptedReader(bytes.NewReader(encoded.Bytes()), provider, 9, 42)
	if err != nil {
		t.Fatalf("NewEncryptedReader: %v", err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(decoded, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", decoded, plaintext)
	}
}
