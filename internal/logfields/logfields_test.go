package logfields

import (
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    interface{}
	}{
		{"Project", KeyProject, "/home/u/proj", Project("/home/u/proj")},
		{"Artifact", KeyArtifact, "lockfile", Artifact("lockfile")},
		{"Tier", KeyTier, "observed", Tier("observed")},
		{"Hash", KeyHash, "ab12cd34", Hash("ab12cd34")},
		{"OldHash", KeyOldHash, "ab12cd34", OldHash("ab12cd34")},
		{"NewHash", KeyNewHash, "ef56ab78", NewHash("ef56ab78")},
		{"Target", KeyTarget, "ef56ab78", Target("ef56ab78")},
		{"Action", KeyAction, "snapshot", Action("snapshot")},
		{"JobID", KeyJobID, "123", JobID("123")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Op", KeyOp, "WRITE", Op("WRITE")},
		{"Method", KeyMethod, "GET", Method("GET")},
		{"RemoteAddr", KeyRemoteAddr, "1.2.3.4", RemoteAddr("1.2.3.4")},
	}

	for _, tc := range cases {
		a := tc.attr.(slog.Attr)
		if a.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, a.Key)
		}
		if got := a.Value.String(); got != tc.attrVal { // Value is slog.Value
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

// TestNumericHelpers verifies keys for numeric & float helpers.
func TestNumericHelpers(t *testing.T) {
	if v := Pending(2); v.Key != KeyPending {
		t.Fatalf("Pending key mismatch: %s", v.Key)
	}
	if v := Status(200); v.Key != KeyStatus {
		t.Fatalf("Status key mismatch: %s", v.Key)
	}
	if v := DurationMS(12.5); v.Key != KeyDurationMS {
		t.Fatalf("DurationMS key mismatch: %s", v.Key)
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError {
		t.Fatalf("Error key mismatch: %s", attr.Key)
	}
	if attr.Value.String() != "" {
		t.Fatalf("Expected empty error string, got %s", attr.Value.String())
	}
	attr = Error(errTest{})
	if attr.Value.String() != "err-test" {
		t.Fatalf("Expected 'err-test', got %s", attr.Value.String())
	}
}

type errTest struct{}

func (e errTest) Error() string { return "err-test" }
