package domain

import "testing"

func TestValidEnclaveId(t *testing.T) {
	cases := map[string]bool{
		"prod":        true,
		"prod-east-1": true,
		"a":           true,
		"":            false,
		"Prod":        false,
		"prod_east":   false,
		"-prod":       false,
	}
	for id, want := range cases {
		if got := ValidEnclaveId(EnclaveId(id)); got != want {
			t.Errorf("ValidEnclaveId(%q) = %v, want %v", id, got, want)
		}
	}

	long := ""
	for i := 0; i < 31; i++ {
		long += "a"
	}
	if ValidEnclaveId(EnclaveId(long)) {
		t.Errorf("ValidEnclaveId(%q) = true, want false (31 chars)", long)
	}
}

func TestValidPartitionId(t *testing.T) {
	if !ValidPartitionId("web-api") {
		t.Errorf("expected web-api to be valid")
	}
	if ValidPartitionId("") {
		t.Errorf("expected empty partition id to be invalid")
	}
}

func TestIsLegalAuth(t *testing.T) {
	if !IsLegalAuth(ProducesHTTP, AuthOAuth) {
		t.Errorf("expected http+oauth to be legal")
	}
	if IsLegalAuth(ProducesTCP, AuthOAuth) {
		t.Errorf("expected tcp+oauth to be illegal")
	}
	if IsLegalAuth(ProducesQueue, AuthMTLS) {
		t.Errorf("expected queue+mtls to be illegal")
	}
}

func TestMandatoryOutputs(t *testing.T) {
	got := MandatoryOutputs(ProducesHTTP)
	if len(got) != 2 || got[0] != "hostname" || got[1] != "port" {
		t.Errorf("unexpected mandatory outputs for http: %v", got)
	}
	if got := MandatoryOutputs(ProducesQueue); len(got) != 1 || got[0] != "queue_url" {
		t.Errorf("unexpected mandatory outputs for queue: %v", got)
	}
}
