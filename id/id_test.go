package id_test

import (
	"strings"
	"testing"

	"github.com/debnit/MsmeBazaar-sub000/id"
)

var kinds = []struct {
	prefix string
	newFn  func() id.ID
	parse  func(string) (id.ID, error)
}{
	{"esc", id.NewEscrowID, id.ParseEscrowID},
	{"ms", id.NewMilestoneID, id.ParseMilestoneID},
	{"etx", id.NewTransactionID, id.ParseTransactionID},
	{"obx", id.NewOutboxID, id.ParseOutboxID},
	{"job", id.NewJobID, id.ParseJobID},
	{"dlq", id.NewDLQID, id.ParseDLQID},
	{"wkr", id.NewWorkerID, id.ParseWorkerID},
	{"lease", id.NewLeaseID, id.ParseLeaseID},
}

func TestKinds_GenerateAndParse(t *testing.T) {
	for _, k := range kinds {
		t.Run(k.prefix, func(t *testing.T) {
			fresh := k.newFn()
			if !strings.HasPrefix(fresh.String(), k.prefix+"_") {
				t.Fatalf("String() = %q, want prefix %q", fresh, k.prefix+"_")
			}
			if string(fresh.Prefix()) != k.prefix {
				t.Errorf("Prefix() = %q", fresh.Prefix())
			}
			back, err := k.parse(fresh.String())
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if back != fresh {
				t.Errorf("parsed %q, want %q", back, fresh)
			}
		})
	}
}

func TestParse_RejectsOtherKinds(t *testing.T) {
	escrowID := id.NewEscrowID().String()
	if _, err := id.ParseMilestoneID(escrowID); err == nil {
		t.Error("milestone parser accepted an escrow id")
	}
	if _, err := id.ParseJobID(id.NewDLQID().String()); err == nil {
		t.Error("job parser accepted a dlq id")
	}
	_, err := id.ParseEscrowID(id.NewJobID().String())
	if err == nil || !strings.Contains(err.Error(), "not a escrow id") {
		t.Errorf("err = %v", err)
	}
}

func TestParse_Garbage(t *testing.T) {
	for _, in := range []string{"", "not an id", "esc_!!", "_"} {
		if _, err := id.Parse(in); err == nil {
			t.Errorf("Parse(%q) accepted garbage", in)
		}
	}
}

func TestNil(t *testing.T) {
	var zero id.ID
	if !zero.IsNil() || zero != id.Nil {
		t.Fatal("zero value is not Nil")
	}
	if zero.String() != "" || zero.Prefix() != "" {
		t.Errorf("Nil renders %q/%q", zero.String(), zero.Prefix())
	}
	text, err := zero.MarshalText()
	if err != nil || len(text) != 0 {
		t.Errorf("MarshalText(Nil) = %q, %v", text, err)
	}
}

func TestText(t *testing.T) {
	original := id.NewEscrowID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var restored id.ID
	if err := restored.UnmarshalText(data); err != nil {
		t.Fatal(err)
	}
	if restored != original {
		t.Errorf("restored %q, want %q", restored, original)
	}

	restored = id.NewJobID()
	if err := restored.UnmarshalText(nil); err != nil || !restored.IsNil() {
		t.Errorf("empty text: got %q err=%v", restored, err)
	}
}

func TestSQL(t *testing.T) {
	original := id.NewTransactionID()
	val, err := original.Value()
	if err != nil {
		t.Fatal(err)
	}
	var fromText, fromBytes id.ID
	if err := fromText.Scan(val); err != nil {
		t.Fatal(err)
	}
	if err := fromBytes.Scan([]byte(original.String())); err != nil {
		t.Fatal(err)
	}
	if fromText != original || fromBytes != original {
		t.Errorf("scanned %q / %q, want %q", fromText, fromBytes, original)
	}

	if val, _ := id.Nil.Value(); val != nil {
		t.Errorf("Nil.Value() = %v, want NULL", val)
	}
	var null id.ID
	if err := null.Scan(nil); err != nil || !null.IsNil() {
		t.Errorf("scan NULL: %q err=%v", null, err)
	}
	if err := null.Scan(42); err == nil {
		t.Error("scanned an int")
	}
}

func TestIDsAreUniqueAndOrdered(t *testing.T) {
	a := id.NewJobID()
	b := id.NewJobID()
	if a == b {
		t.Fatalf("consecutive ids collide: %q", a)
	}
	if a.String() > b.String() {
		t.Errorf("ids not time ordered: %q > %q", a, b)
	}
}
