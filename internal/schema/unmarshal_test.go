package schema

import (
	"encoding/json"
	"testing"
)

func TestUnmarshalJSON_RoundTrip(t *testing.T) {
	payloads := []string{
		`{"id":1,"name":"A","nested":{"deep":[1,2]},"maybe":null}`,
		`[{"a":1},{"a":2}]`,
		`[1,"mixed",true]`,
	}

	for _, raw := range payloads {
		t.Run(raw, func(t *testing.T) {
			original := Synthesize(decode(t, raw))

			data, err := json.Marshal(original)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}

			restored := &Node{}
			if err := json.Unmarshal(data, restored); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if !Equal(original, restored) {
				t.Errorf("round trip changed the schema:\n  in:  %s\n  out: %+v", data, restored)
			}
		})
	}
}

func TestUnmarshalJSON_PreservesOrderAndRequired(t *testing.T) {
	raw := `{"type":"object","properties":{"zebra":{"type":"integer"},"alpha":{"type":"string"}},"required":["zebra"]}`

	n := &Node{}
	if err := json.Unmarshal([]byte(raw), n); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if len(n.Props) != 2 || n.Props[0].Name != "zebra" || n.Props[1].Name != "alpha" {
		t.Fatalf("props = %+v, want zebra before alpha", n.Props)
	}
	if !n.Props[0].Required || n.Props[1].Required {
		t.Error("required flags lost in round trip")
	}
}
