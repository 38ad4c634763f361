package executor

import (
	"context"
	"io"
	"net/http"
	"os"

	"golang.org/x/xerrors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/CelestialCrafter/xuehua/planner"
)

// HTTPRequest is the HTTP executor's request shape.
type HTTPRequest struct {
	Path   string `json:"path"`
	URL    string `json:"url"`
	Method string `json:"method"`
}

// HTTPExecutor performs a single blocking HTTP request and streams the
// response body into a file under the build environment.
//
// Grounded on cmd/distri/internal/fuse/fusehttp.go's use of the standard
// net/http client; the blocking call itself is offloaded onto an
// errgroup-managed goroutine the same way internal/install/install.go
// offloads its own blocking filesystem work, satisfying spec.md §5's
// "blocking work is offloaded to a worker pool" requirement without
// pulling in a dedicated worker-pool library the corpus never uses.
type HTTPExecutor struct {
	init   *InitContext
	client *http.Client
}

// NewHTTPExecutor is a Factory constructing the HTTP fetch executor.
func NewHTTPExecutor(init *InitContext) (Executor, error) {
	return &HTTPExecutor{init: init, client: http.DefaultClient}, nil
}

func (e *HTTPExecutor) Name() planner.ExecutorName {
	return planner.ExecutorName{Identifier: "http"}
}

func (e *HTTPExecutor) Execute(ctx context.Context, payload *structpb.Value) error {
	var req HTTPRequest
	if err := decodePayload(payload, &req); err != nil {
		return xerrors.Errorf("decode http request: %w", err)
	}

	dest, err := resolveWithin(e.init.EnvironmentRoot, req.Path)
	if err != nil {
		return err
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
		if err != nil {
			return xerrors.Errorf("build request: %w", err)
		}

		resp, err := e.client.Do(httpReq)
		if err != nil {
			return xerrors.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return xerrors.Errorf("fetch %s: unexpected status %d", req.URL, resp.StatusCode)
		}

		out, err := os.Create(dest)
		if err != nil {
			return xerrors.Errorf("create %s: %w", dest, err)
		}
		defer out.Close()

		if _, err := io.Copy(out, resp.Body); err != nil {
			return xerrors.Errorf("write %s: %w", dest, err)
		}
		return nil
	})
	return g.Wait()
}
