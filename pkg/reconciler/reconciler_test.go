package reconciler

import (
	"context"
	"testing"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/driver"
	"github.com/dragon-panic/nclav/pkg/graph"
	"github.com/dragon-panic/nclav/pkg/nclaverr"
	"github.com/dragon-panic/nclav/pkg/store/memstore"
)

// fakeDriver is a Driver whose provisioning calls can be made to fail
// per enclave id, mirroring the teacher's mockExecutor.failUnits pattern.
type fakeDriver struct {
	failEnclave map[domain.EnclaveId]bool
	calls       []string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{failEnclave: make(map[domain.EnclaveId]bool)}
}

func (f *fakeDriver) ContextVars(ctx context.Context, e domain.EnclaveDecl, h domain.Handle) (driver.ContextVars, error) {
	return driver.ContextVars{}, nil
}

func (f *fakeDriver) AuthEnv(ctx context.Context, e domain.EnclaveDecl, h domain.Handle) (driver.AuthEnv, error) {
	return driver.AuthEnv{}, nil
}

func (f *fakeDriver) ProvisionEnclave(ctx context.Context, e domain.EnclaveDecl, existing domain.Handle) (domain.Handle, driver.Outputs, error) {
	f.calls = append(f.calls, "provision_enclave:"+string(e.Id))
	if f.failEnclave[e.Id] {
		return nil, nil, nclaverr.NewDriverError(nclaverr.DriverProvisionFailed, "forced failure for %s", e.Id)
	}
	return domain.Handle("enclave:" + e.Id), driver.Outputs{}, nil
}

func (f *fakeDriver) TeardownEnclave(ctx context.Context, e domain.EnclaveDecl, h domain.Handle) error {
	f.calls = append(f.calls, "teardown_enclave:"+string(e.Id))
	return nil
}

func (f *fakeDriver) ProvisionPartition(ctx context.Context, e domain.EnclaveDecl, p domain.PartitionDecl, inputs map[string]string, existing domain.Handle) (domain.Handle, driver.Outputs, error) {
	f.calls = append(f.calls, "provision_partition:"+string(e.Id)+"/"+string(p.Id))
	return domain.Handle("partition:" + p.Id), driver.Outputs{}, nil
}

func (f *fakeDriver) TeardownPartition(ctx context.Context, e domain.EnclaveDecl, p domain.PartitionDecl, h domain.Handle) error {
	f.calls = append(f.calls, "teardown_partition:"+string(e.Id)+"/"+string(p.Id))
	return nil
}

func (f *fakeDriver) ProvisionImport(ctx context.Context, importer domain.PartitionId, imp domain.ImportDecl, h domain.Handle, out driver.Outputs) (driver.Outputs, error) {
	f.calls = append(f.calls, "provision_import:"+imp.Alias)
	return driver.Outputs{"value": "wired"}, nil
}

func (f *fakeDriver) ObserveEnclave(ctx context.Context, e domain.EnclaveDecl, h domain.Handle) (domain.ResourceStatus, error) {
	return domain.StatusActive, nil
}

func (f *fakeDriver) ObservePartition(ctx context.Context, e domain.EnclaveDecl, p domain.PartitionDecl, h domain.Handle) (domain.ResourceStatus, error) {
	return domain.StatusActive, nil
}

func registryWith(d driver.Driver) *driver.Registry {
	r := driver.NewRegistry(domain.CloudLocal)
	r.Register(domain.CloudLocal, d)
	return r
}

func planForOneEnclaveNoPartitions(id domain.EnclaveId) *graph.Plan {
	decl := &domain.EnclaveDecl{Id: id}
	nid := graph.NodeId(id)
	return &graph.Plan{
		Enclaves:  map[domain.EnclaveId]*domain.EnclaveDecl{id: decl},
		Nodes:     map[graph.NodeId]*graph.Node{nid: {Id: nid, Kind: graph.NodeEnclave, EnclaveId: id}},
		Edges:     map[graph.NodeId][]graph.NodeId{nid: nil},
		TopoOrder: []graph.NodeId{nid},
		Level:     map[graph.NodeId]int{nid: 0},
	}
}

func TestDiffOne(t *testing.T) {
	cases := []struct {
		name              string
		desired, existing string
		present           bool
		want              ChangeKind
	}{
		{"absent creates", "h1", "", false, ChangeCreate},
		{"present same hash is no_change", "h1", "h1", true, ChangeNoChange},
		{"present different hash updates", "h1", "h0", true, ChangeUpdate},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := diffOne(c.desired, c.existing, c.present); got != c.want {
				t.Errorf("diffOne(%q, %q, %v) = %v, want %v", c.desired, c.existing, c.present, got, c.want)
			}
		})
	}
}

func TestComputeDiff_CreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	// pre-existing applied state: enclave "old" with a stale hash.
	_, err := s.UpsertEnclave(ctx, domain.EnclaveRecord{
		Decl: domain.EnclaveDecl{Id: "old"},
		Meta: domain.ResourceMeta{DesiredHash: "stale"},
	}, 0)
	if err != nil {
		t.Fatalf("seeding applied state: %v", err)
	}

	plan := planForOneEnclaveNoPartitions("new")
	snap, err := (&Reconciler{store: s}).snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	r := &Reconciler{store: s}
	diff := r.computeDiff(plan, snap)

	if diff.enclaveKind["new"] != ChangeCreate {
		t.Errorf("expected new enclave to be Create, got %v", diff.enclaveKind["new"])
	}
	if len(diff.deletedEnclaves) != 1 || diff.deletedEnclaves[0] != "old" {
		t.Errorf("expected old enclave to be listed deleted, got %v", diff.deletedEnclaves)
	}
}

func TestReconcile_DryRun_NeverTouchesStoreOrDriver(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	d := newFakeDriver()

	r := New(Config{Store: s, Drivers: registryWith(d), WorkspaceHome: t.TempDir()})

	dir := t.TempDir() // empty enclaves directory: no config.yml anywhere
	result, err := r.Reconcile(ctx, Request{EnclavesDir: dir, DryRun: true})
	if err != nil {
		t.Fatalf("dry run reconcile: %v", err)
	}
	if result.HasErrors() {
		t.Errorf("expected no errors, got %v", result.Errors)
	}
	if len(result.Changes) != 0 {
		t.Errorf("expected zero changes for an empty enclaves tree, got %v", result.Changes)
	}
	if len(d.calls) != 0 {
		t.Errorf("dry run must never call the driver, got calls %v", d.calls)
	}

	enclaves, err := s.ListEnclaves(ctx)
	if err != nil || len(enclaves) != 0 {
		t.Errorf("dry run must never write to the store, got %v / %v", enclaves, err)
	}
}

func TestResolveClouds_UnconfiguredCloudIsConfigError(t *testing.T) {
	ctx := context.Background()
	r := &Reconciler{drivers: driver.NewRegistry(domain.CloudGCP)} // no driver registered for gcp

	plan := planForOneEnclaveNoPartitions("acme-dev")
	result := &Result{}
	clouds := r.resolveClouds(ctx, plan, result)

	res := clouds["acme-dev"]
	if res.err == nil {
		t.Fatal("expected a ConfigError for an unconfigured cloud")
	}
	if !nclaverr.IsConfig(res.err) {
		t.Errorf("expected a classified ConfigError, got %v", res.err)
	}
	if !result.HasErrors() || result.Errors[0].Kind != "ConfigError" {
		t.Errorf("expected result to carry a ConfigError, got %v", result.Errors)
	}
}

// TestWalkPlan_FailureIsolationSkipsDependents exercises spec.md §4.6's
// failure isolation rule directly: an enclave whose provision_enclave
// fails must not leave its dependent partition marked Error — the
// partition is blocked and left Pending instead.
func TestWalkPlan_FailureIsolationSkipsDependents(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	d := newFakeDriver()
	d.failEnclave["acme-dev"] = true

	enclaveDecl := &domain.EnclaveDecl{
		Id: "acme-dev",
		Partitions: []domain.PartitionDecl{
			{Id: "db", Backend: domain.BackendTerraform},
		},
	}
	enclaveNid := graph.NodeId("acme-dev")
	partNid := graph.NodeId("acme-dev/db")

	plan := &graph.Plan{
		Enclaves: map[domain.EnclaveId]*domain.EnclaveDecl{"acme-dev": enclaveDecl},
		Nodes: map[graph.NodeId]*graph.Node{
			enclaveNid: {Id: enclaveNid, Kind: graph.NodeEnclave, EnclaveId: "acme-dev"},
			partNid:    {Id: partNid, Kind: graph.NodePartition, EnclaveId: "acme-dev", PartitionId: "db"},
		},
		Edges:     map[graph.NodeId][]graph.NodeId{enclaveNid: nil, partNid: {enclaveNid}},
		TopoOrder: []graph.NodeId{enclaveNid, partNid},
		Level:     map[graph.NodeId]int{enclaveNid: 0, partNid: 1},
	}

	r := New(Config{Store: s, Drivers: registryWith(d), WorkspaceHome: t.TempDir()})
	snap, err := r.snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	diff := r.computeDiff(plan, snap)
	clouds := r.resolveClouds(ctx, plan, &Result{})
	result := &Result{}

	blocked := r.walkPlan(ctx, plan, snap, diff, clouds, "run-1", result)

	if !blocked.isBlocked(enclaveNid) {
		t.Error("expected the failing enclave node to be blocked")
	}
	if !blocked.isBlocked(partNid) {
		t.Error("expected the dependent partition node to be blocked (failure isolation)")
	}

	if len(result.Errors) != 1 {
		t.Fatalf("expected exactly one resource error (the enclave), got %v", result.Errors)
	}
	if result.Errors[0].Resource != "acme-dev" {
		t.Errorf("expected the error to be attributed to the enclave, got %v", result.Errors[0])
	}

	for _, c := range d.calls {
		if c == "provision_partition:acme-dev/db" {
			t.Error("provision_partition must never be called for a blocked dependent")
		}
	}

	partRec, err := s.GetPartition(ctx, "acme-dev", "db")
	if err != nil {
		t.Fatalf("get partition: %v", err)
	}
	if partRec != nil && partRec.Meta.Status == domain.StatusError {
		t.Errorf("a skipped dependent must never be marked Error, got %v", partRec.Meta.Status)
	}
}

func TestErrKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nclaverr.NewValidationError("x"), "ValidationError"},
		{nclaverr.NewConfigError("x"), "ConfigError"},
		{nclaverr.NewStoreConflict("x"), "StoreConflict"},
		{nclaverr.NewDriverError(nclaverr.DriverProvisionFailed, "x"), "DriverError"},
		{context.DeadlineExceeded, "Error"},
	}
	for _, c := range cases {
		if got := errKind(c.err); got != c.want {
			t.Errorf("errKind(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestBlockSet_TransitiveBlocking(t *testing.T) {
	b := newBlockSet()
	a := graph.NodeId("a")
	b.mark(a)

	if !b.anyBlocked([]graph.NodeId{a, "b"}) {
		t.Error("expected anyBlocked to report true when one dependency is blocked")
	}
	if b.anyBlocked([]graph.NodeId{"b", "c"}) {
		t.Error("expected anyBlocked to report false when no dependency is blocked")
	}
}

func TestRunBounded_RunsEveryItemExactlyOnce(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	seen := make(map[int]bool)
	gate := make(chan struct{}, 1)
	gate <- struct{}{}

	runBounded(items, 2, func(i int) {
		<-gate
		seen[i] = true
		gate <- struct{}{}
	})

	for _, i := range items {
		if !seen[i] {
			t.Errorf("item %d was never processed", i)
		}
	}
}
