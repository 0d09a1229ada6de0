package crypto

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	cipher := Encrypt(DefaultKey, data)
	if bytes.Equal(cipher, data) {
		t.Fatalf("encrypted data equals plaintext")
	}
	plain := Decrypt(DefaultKey, cipher)
	if !bytes.Equal(plain, data) {
		t.Fatalf("round-trip mismatch: got %q, want %q", plain, data)
	}
}

func TestEncryptKnownVector(t *testing.T) {
	// key="AB", plaintext byte 0 is encrypted with key[0]='A'=65.
	got := Encrypt("AB", []byte{0, 0, 250})
	want := []byte{65, 66, byte((250 + 65) % 256)}
	if !bytes.Equal(got, want) {
		t.Fatalf("Encrypt = % x, want % x", got, want)
	}
}

func TestEncryptEmptyKeyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for empty key")
		}
	}()
	Encrypt("", []byte{1})
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2, 3, 4, 5}, 1024*10)

	comp, err := Compress(data)
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}
	if len(comp) == 0 {
		t.Fatalf("expected compressed data, got empty slice")
	}

	decomp, err := Decompress(comp)
	if err != nil {
		t.Fatalf("Decompress error: %v", err)
	}
	if !bytes.Equal(data, decomp) {
		t.Fatalf("round-trip mismatch")
	}
}

func TestCompressEmptyInput(t *testing.T) {
	comp, err := Compress(nil)
	if err != nil {
		t.Fatalf("Compress(nil) error: %v", err)
	}
	decomp, err := Decompress(comp)
	if err != nil {
		t.Fatalf("Decompress error: %v", err)
	}
	if len(decomp) != 0 {
		t.Fatalf("expected empty decompressed output, got %d bytes", len(decomp))
	}
}

func TestTransformInverseTransformAllFlagCombos(t *testing.T) {
	data := []byte("a file chunk's worth of plaintext bytes, up to 8192 of them")
	for _, compression := range []bool{false, true} {
		for _, encryption := range []bool{false, true} {
			transformed, err := Transform(data, compression, encryption, DefaultKey)
			if err != nil {
				t.Fatalf("Transform(compression=%v, encryption=%v) error: %v", compression, encryption, err)
			}
			restored, err := InverseTransform(transformed, compression, encryption, DefaultKey)
			if err != nil {
				t.Fatalf("InverseTransform(compression=%v, encryption=%v) error: %v", compression, encryption, err)
			}
			if !bytes.Equal(restored, data) {
				t.Fatalf("compression=%v encryption=%v: round-trip mismatch: got %q, want %q", compression, encryption, restored, data)
			}
		}
	}
}

func BenchmarkCompress(b *testing.B) {
	data := bytes.Repeat([]byte("EffTeePee compression benchmark"), 1024)
	for i := 0; i < b.N; i++ {
		if _, err := Compress(data); err != nil {
			b.Fatalf("Compress error: %v", err)
		}
	}
}

func BenchmarkDecompress(b *testing.B) {
	data := bytes.Repeat([]byte("EffTeePee compression benchmark"), 1024)
	comp, err := Compress(data)
	if err != nil {
		b.Fatalf("Compress error: %v", err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Decompress(comp); err != nil {
			b.Fatalf("Decompress error: %v", err)
		}
	}
}
