package pgstore

import (
	"testing"

	"github.com/dragon-panic/nclav/pkg/domain"
)

func TestEncodeDecodeRecord_RoundTrip(t *testing.T) {
	decl := domain.EnclaveDecl{Id: "acme-dev", Cloud: domain.CloudLocal}
	meta := domain.ResourceMeta{Status: domain.StatusActive, Generation: 3, DesiredHash: "abc123"}

	declJSON, metaJSON, err := encodeRecord(decl, meta)
	if err != nil {
		t.Fatalf("encodeRecord: %v", err)
	}

	gotDecl, gotMeta, err := decodeRecord[domain.EnclaveDecl](declJSON, metaJSON)
	if err != nil {
		t.Fatalf("decodeRecord: %v", err)
	}
	if gotDecl.Id != decl.Id || gotDecl.Cloud != decl.Cloud {
		t.Errorf("decl round-trip mismatch: got %+v, want %+v", gotDecl, decl)
	}
	if gotMeta.Generation != meta.Generation || gotMeta.DesiredHash != meta.DesiredHash {
		t.Errorf("meta round-trip mismatch: got %+v, want %+v", gotMeta, meta)
	}
}

func TestDecodeRecord_InvalidJSON(t *testing.T) {
	if _, _, err := decodeRecord[domain.EnclaveDecl]("not json", "{}"); err == nil {
		t.Fatal("expected error decoding invalid declaration JSON")
	}
	if _, _, err := decodeRecord[domain.EnclaveDecl]("{}", "not json"); err == nil {
		t.Fatal("expected error decoding invalid metadata JSON")
	}
}

func TestNullableString(t *testing.T) {
	if got := nullableString(""); got != nil {
		t.Errorf("nullableString(\"\") = %v, want nil", got)
	}
	if got := nullableString("partition-1"); got != "partition-1" {
		t.Errorf("nullableString(\"partition-1\") = %v, want %q", got, "partition-1")
	}
}

func TestItoa(t *testing.T) {
	cases := map[int]string{0: "0", 1: "1", 42: "42", -7: "-7", 100: "100"}
	for n, want := range cases {
		if got := itoa(n); got != want {
			t.Errorf("itoa(%d) = %q, want %q", n, got, want)
		}
	}
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch v := d.(type) {
		case *string:
			*v = r.vals[i].(string)
		case *domain.EnclaveId:
			*v = r.vals[i].(domain.EnclaveId)
		case *domain.PartitionId:
			*v = r.vals[i].(domain.PartitionId)
		}
	}
	return nil
}

func TestRowScannerInterface_SatisfiedByFake(t *testing.T) {
	var _ rowScanner = fakeRow{}
}
