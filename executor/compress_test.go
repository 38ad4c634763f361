package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/types/known/structpb"
)

func requestPayload(t *testing.T, fields map[string]interface{}) *structpb.Value {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return structpb.NewStructValue(s)
}

func TestCompressionExecutorRoundTrip(t *testing.T) {
	root := t.TempDir()
	original := []byte("the quick brown fox jumps over the lazy dog, repeatedly, for compressibility")
	if err := os.WriteFile(filepath.Join(root, "in"), original, 0o644); err != nil {
		t.Fatalf("seed input: %v", err)
	}

	exec, err := NewCompressionExecutor(&InitContext{EnvironmentRoot: root})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}

	compressPayload := requestPayload(t, map[string]interface{}{
		"algorithm": "zstd",
		"action":    "Compress",
		"input":     "in",
		"output":    "in.zst",
	})
	if err := exec.Execute(context.Background(), compressPayload); err != nil {
		t.Fatalf("compress: %v", err)
	}

	decompressPayload := requestPayload(t, map[string]interface{}{
		"algorithm": "zstd",
		"action":    "Decompress",
		"input":     "in.zst",
		"output":    "out",
	})
	if err := exec.Execute(context.Background(), decompressPayload); err != nil {
		t.Fatalf("decompress: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "out"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if diff := cmp.Diff(original, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCompressionExecutorRejectsUnsupportedAlgorithm(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "in"), []byte("x"), 0o644)

	exec, _ := NewCompressionExecutor(&InitContext{EnvironmentRoot: root})
	payload := requestPayload(t, map[string]interface{}{
		"algorithm": "gzip",
		"action":    "Compress",
		"input":     "in",
		"output":    "out",
	})
	err := exec.Execute(context.Background(), payload)
	if _, ok := err.(*UnsupportedAlgorithmError); !ok {
		t.Fatalf("expected *UnsupportedAlgorithmError, got %T: %v", err, err)
	}
}

func TestCompressionExecutorRejectsPathEscape(t *testing.T) {
	root := t.TempDir()
	exec, _ := NewCompressionExecutor(&InitContext{EnvironmentRoot: root})
	payload := requestPayload(t, map[string]interface{}{
		"algorithm": "zstd",
		"action":    "Compress",
		"input":     "../escape",
		"output":    "out",
	})
	err := exec.Execute(context.Background(), payload)
	if _, ok := err.(*InvalidPathError); !ok {
		t.Fatalf("expected *InvalidPathError, got %T: %v", err, err)
	}
}
