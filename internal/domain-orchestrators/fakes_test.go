package orchestrators

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/opencontainers/go-digest"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
)

// journal records collaborator calls in order
type journal struct {
	mu    sync.Mutex
	calls []string
}

func (j *journal) record(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, fmt.Sprintf(format, args...))
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.calls...)
}

func (j *journal) contains(prefix string) bool {
	for _, c := range j.list() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

type fakeFetcher struct {
	j     *journal
	errs  []error // consumed one per call; nil entries succeed
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, src *entities.VersionSourceDescriptor, dest string) (string, error) {
	f.calls++
	f.j.record("fetch %s", src.URL)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return dest, nil
}

type fakeExtractor struct {
	j   *journal
	err error
}

func (f *fakeExtractor) Extract(_ context.Context, archive, dest string) error {
	f.j.record("extract %s", archive)
	return f.err
}

// fakeRunner succeeds unless the joined argv starts with failOn
type fakeRunner struct {
	j        *journal
	failOn   string
	exitCode int
	stderr   string
	specs    []gateways.CommandSpec
	onRun    func(cmd string)
}

func (f *fakeRunner) Run(_ context.Context, spec gateways.CommandSpec) *gateways.CommandResult {
	cmd := strings.Join(spec.Args, " ")
	f.j.record("run %s", cmd)
	f.specs = append(f.specs, spec)
	if f.onRun != nil {
		f.onRun(cmd)
	}
	if f.failOn != "" && strings.HasPrefix(cmd, f.failOn) {
		return &gateways.CommandResult{
			ExitCode: f.exitCode,
			Attempts: 1,
			Stdout:   "checking for gcc... gcc\n",
			Stderr:   f.stderr,
			Error:    fmt.Errorf("exit status %d", f.exitCode),
		}
	}
	return &gateways.CommandResult{Success: true, Attempts: 1}
}

type fakeRemover struct {
	j    *journal
	err  error
	root string
}

func (f *fakeRemover) Remove(_ context.Context, root string, patterns []string) ([]string, error) {
	f.root = root
	f.j.record("remove %s", strings.Join(patterns, " "))
	if f.err != nil {
		return nil, f.err
	}
	return patterns, nil
}

type fakeSignatures struct {
	j         *journal
	importErr error
	verifyErr error
}

func (f *fakeSignatures) ImportKeysFromURL(_ context.Context, keysURL string) error {
	f.j.record("import-keys %s", keysURL)
	return f.importErr
}

func (f *fakeSignatures) VerifySignature(_ context.Context, path, sigURL string) error {
	f.j.record("verify-signature %s", sigURL)
	return f.verifyErr
}

type fakeLedger struct {
	err    error
	pinned []string
}

func (f *fakeLedger) Pin(_ context.Context, src *entities.VersionSourceDescriptor) error {
	if f.err != nil {
		return f.err
	}
	f.pinned = append(f.pinned, src.Component+"@"+src.Version)
	return nil
}

type shippedLicense struct {
	root, component, version, license string
}

type fakeLicenses struct {
	err     error
	shipped []shippedLicense
}

func (f *fakeLicenses) ShipLicense(_ context.Context, root, component, version, license string) error {
	if f.err != nil {
		return f.err
	}
	f.shipped = append(f.shipped, shippedLicense{root, component, version, license})
	return nil
}

type fakePackager struct {
	err      error
	root     string
	archives []string
}

func (f *fakePackager) Package(_ context.Context, root, archivePath string) (digest.Digest, error) {
	if f.err != nil {
		return "", f.err
	}
	f.root = root
	f.archives = append(f.archives, archivePath)
	return digest.FromString(archivePath), nil
}

// collaborators bundles one set of fakes sharing a journal
type collaborators struct {
	j          *journal
	fetcher    *fakeFetcher
	extractor  *fakeExtractor
	runner     *fakeRunner
	remover    *fakeRemover
	signatures *fakeSignatures
}

func newCollaborators() *collaborators {
	j := &journal{}
	return &collaborators{
		j:          j,
		fetcher:    &fakeFetcher{j: j},
		extractor:  &fakeExtractor{j: j},
		runner:     &fakeRunner{j: j},
		remover:    &fakeRemover{j: j},
		signatures: &fakeSignatures{j: j},
	}
}

func (c *collaborators) executor(cfg BuildExecutorConfig) *BuildExecutor {
	return NewBuildExecutor(c.fetcher, c.extractor, c.runner, c.remover, c.signatures, nil, cfg)
}
