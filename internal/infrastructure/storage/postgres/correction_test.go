package postgres

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
)

func TestCorrection_BeforeImageRoundTrip(t *testing.T) {
	svc, err := NewCorrectionService(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	small := []byte(`{"id":"0189","notes":"damaged pallet"}`)
	var plain CorrectionEntry
	svc.packBeforeImage(&plain, small)
	if plain.CompressionAlgo != CompressionNone {
		t.Errorf("expected small image to stay uncompressed, got %s", plain.CompressionAlgo)
	}
	image, err := svc.BeforeImageOf(&plain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(image, small) {
		t.Errorf("before-image mismatch: %s", image)
	}

	large := []byte(`{"notes":"` + strings.Repeat("counted during inventory. ", 400) + `"}`)
	var compressed CorrectionEntry
	svc.packBeforeImage(&compressed, large)
	if compressed.CompressionAlgo != CompressionZstd {
		t.Errorf("expected large image to compress, got %s", compressed.CompressionAlgo)
	}
	if compressed.BeforeImage != nil {
		t.Error("expected no plain image alongside the compressed one")
	}
	if len(compressed.BeforeImageCompressed) >= len(large) {
		t.Errorf("expected compression to shrink %d bytes, got %d", len(large), len(compressed.BeforeImageCompressed))
	}
	image, err = svc.BeforeImageOf(&compressed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(image, large) {
		t.Error("decompressed before-image does not match the original")
	}
}

func TestVoid_RequiresReason(t *testing.T) {
	svc, err := NewCorrectionService(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = svc.Void(context.Background(), id.New(), "")
	if !apperror.IsValidation(err) {
		t.Errorf("expected a validation error, got %v", err)
	}
}

func TestRestore_EmptyIsNoop(t *testing.T) {
	svc, err := NewCorrectionService(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Restore(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
