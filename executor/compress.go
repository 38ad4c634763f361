package executor

import (
	"context"
	"os"
	"strings"

	"golang.org/x/xerrors"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/exp/mmap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/CelestialCrafter/xuehua/planner"
)

// CompressionAction selects the zstd direction a CompressionRequest runs.
type CompressionAction string

const (
	ActionCompress   CompressionAction = "Compress"
	ActionDecompress CompressionAction = "Decompress"
)

// CompressionRequest is the compression executor's request shape.
type CompressionRequest struct {
	Algorithm string            `json:"algorithm"`
	Action    CompressionAction `json:"action"`
	Input     string            `json:"input"`
	Output    string            `json:"output"`
}

// CompressionExecutor runs zstd compression or decompression between two
// paths confined to the build environment.
//
// Uses github.com/klauspost/compress/zstd, the teacher's own
// github.com/klauspost/compress module (internal/install/install.go
// already imports a sibling package, pgzip, from the same module for its
// squashfs image writes) -- the natural choice over adding an unrelated
// compression dependency.
type CompressionExecutor struct {
	init *InitContext
}

// NewCompressionExecutor is a Factory constructing the compression
// executor.
func NewCompressionExecutor(init *InitContext) (Executor, error) {
	return &CompressionExecutor{init: init}, nil
}

func (e *CompressionExecutor) Name() planner.ExecutorName {
	return planner.ExecutorName{Identifier: "compress"}
}

func (e *CompressionExecutor) Execute(ctx context.Context, payload *structpb.Value) error {
	var req CompressionRequest
	if err := decodePayload(payload, &req); err != nil {
		return xerrors.Errorf("decode compression request: %w", err)
	}

	// spec.md §6 documents the wire value as "Zstd"; compared
	// case-insensitively so either casing round-trips through a
	// spec-compliant front-end.
	if !strings.EqualFold(req.Algorithm, "zstd") {
		return &UnsupportedAlgorithmError{Algorithm: req.Algorithm}
	}

	inputPath, err := resolveWithin(e.init.EnvironmentRoot, req.Input)
	if err != nil {
		return err
	}
	outputPath, err := resolveWithin(e.init.EnvironmentRoot, req.Output)
	if err != nil {
		return err
	}

	// The input is opened through mmap, the same strategy archive.Packer
	// uses and install.go relies on for its squashfs images, and then
	// copied whole into a heap buffer for the codec.
	reader, err := mmap.Open(inputPath)
	if err != nil {
		return xerrors.Errorf("mmap open %s: %w", inputPath, err)
	}
	defer reader.Close()

	input := make([]byte, reader.Len())
	if _, err := reader.ReadAt(input, 0); err != nil {
		return xerrors.Errorf("mmap read %s: %w", inputPath, err)
	}

	var output []byte
	switch req.Action {
	case ActionCompress:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return xerrors.Errorf("new zstd encoder: %w", err)
		}
		output = enc.EncodeAll(input, make([]byte, 0, len(input)))
		enc.Close()
	case ActionDecompress:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return xerrors.Errorf("new zstd decoder: %w", err)
		}
		// Every decompression preallocates 256 MiB of output capacity;
		// the frame's content-size field is not consulted here, and
		// DecodeAll grows the buffer past 256 MiB when the output is larger.
		output, err = dec.DecodeAll(input, make([]byte, 0, 256<<20))
		dec.Close()
		if err != nil {
			return xerrors.Errorf("decode %s: %w", inputPath, err)
		}
	default:
		return xerrors.Errorf("unknown compression action %q", req.Action)
	}

	if err := os.WriteFile(outputPath, output, 0o644); err != nil {
		return xerrors.Errorf("write %s: %w", outputPath, err)
	}
	return nil
}
