package events

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestSwapEventPayloads(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	created := SwapCreated{ID: 7, Owner: owner}.Event()
	if created.Type != TypeSwapCreated {
		t.Fatalf("unexpected type %s", created.Type)
	}
	if created.Attributes["id"] != "7" {
		t.Fatalf("unexpected id attribute %q", created.Attributes["id"])
	}
	if created.Attributes["allowed"] != (common.Address{}).Hex() {
		t.Fatalf("zero allowed should render as zero address, got %q", created.Attributes["allowed"])
	}
	accepted := SwapAccepted{ID: 7, Owner: owner, Acceptee: common.HexToAddress("0x01")}.Event()
	if accepted.Attributes["acceptee"] != common.HexToAddress("0x01").Hex() {
		t.Fatalf("unexpected acceptee %q", accepted.Attributes["acceptee"])
	}
	canceled := SwapCanceled{ID: 9, Owner: owner}.Event()
	if got := canceled.AttributeKeys(); strings.Join(got, ",") != "id,owner" {
		t.Fatalf("unexpected keys %v", got)
	}
}

func TestRecorderKeepsOrder(t *testing.T) {
	rec := &Recorder{}
	rec.Emit(SwapCanceled{ID: 1})
	rec.Emit(SwapCreated{ID: 2})

	got := rec.Events()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].EventType() != TypeSwapCanceled || got[1].EventType() != TypeSwapCreated {
		t.Fatalf("unexpected ordering: %v", got)
	}
	rec.Reset()
	if len(rec.Events()) != 0 {
		t.Fatalf("expected reset recorder to be empty")
	}
}

func TestLogEmitterWritesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	LogEmitter{Logger: logger}.Emit(SwapCreated{ID: 3, Owner: common.HexToAddress("0x02")})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["event"] != TypeSwapCreated {
		t.Fatalf("unexpected event field %v", entry["event"])
	}
	if entry["id"] != "3" {
		t.Fatalf("unexpected id field %v", entry["id"])
	}
}
