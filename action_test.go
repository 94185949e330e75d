package digiself_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/gt"
)

func TestPlannerActionUnmarshalLenient(t *testing.T) {
	t.Run("normalizes type", func(t *testing.T) {
		var a digiself.PlannerAction
		gt.NoError(t, json.Unmarshal([]byte(`{"type":" create_meeting ","payload":{"title":"x"}}`), &a))
		gt.Equal(t, a.Type, digiself.ActionCreateMeeting)
		gt.True(t, a.Type.Valid())
		gt.Equal(t, a.Payload["title"], any("x"))
	})

	t.Run("numeric id", func(t *testing.T) {
		var a digiself.PlannerAction
		gt.NoError(t, json.Unmarshal([]byte(`{"id":7,"type":"SET_MODE"}`), &a))
		gt.Equal(t, a.ID, "7")
	})

	t.Run("non string type", func(t *testing.T) {
		var a digiself.PlannerAction
		gt.NoError(t, json.Unmarshal([]byte(`{"type":3}`), &a))
		gt.Equal(t, a.Type, digiself.ActionType(""))
		gt.False(t, a.Type.Valid())
	})

	t.Run("non object payload", func(t *testing.T) {
		var a digiself.PlannerAction
		gt.NoError(t, json.Unmarshal([]byte(`{"type":"MEMORIZE","payload":"remember me"}`), &a))
		gt.Value(t, a.Payload).NotNil()
		gt.Equal(t, len(a.Payload), 0)
	})

	t.Run("not an object", func(t *testing.T) {
		var a digiself.PlannerAction
		gt.Error(t, json.Unmarshal([]byte(`"CREATE_DIARY"`), &a))
	})
}

func TestPayloadString(t *testing.T) {
	p := digiself.Payload{
		"blank":  "  ",
		"title":  " Hello ",
		"num":    3.5,
		"flag":   true,
		"obj":    map[string]any{"a": 1},
		"list":   []any{"a"},
		"nilval": nil,
	}

	v, ok := p.String("missing", "blank", "title")
	gt.True(t, ok)
	gt.Equal(t, v, "Hello")

	v, _ = p.String("num")
	gt.Equal(t, v, "3.5")
	v, _ = p.String("flag")
	gt.Equal(t, v, "true")

	for _, key := range []string{"obj", "list", "nilval", "blank", "missing"} {
		_, ok := p.String(key)
		gt.False(t, ok)
	}

	gt.Equal(t, p.StringOr("def", "obj"), "def")
}

func TestPayloadTime(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)

	type testCase struct {
		input string
		want  time.Time
		ok    bool
	}
	runTest := func(tc testCase) func(t *testing.T) {
		return func(t *testing.T) {
			got, ok := digiself.Payload{"startTime": tc.input}.Time(tokyo, "startTime")
			gt.Equal(t, ok, tc.ok)
			if tc.ok {
				gt.True(t, got.Equal(tc.want))
			}
		}
	}

	t.Run("rfc3339", runTest(testCase{
		input: "2025-06-02T10:00:00Z",
		want:  time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		ok:    true,
	}))
	t.Run("no zone uses location", runTest(testCase{
		input: "2025-06-02T10:00:00",
		want:  time.Date(2025, 6, 2, 10, 0, 0, 0, tokyo),
		ok:    true,
	}))
	t.Run("space separated", runTest(testCase{
		input: "2025-06-02 10:00",
		want:  time.Date(2025, 6, 2, 10, 0, 0, 0, tokyo),
		ok:    true,
	}))
	t.Run("date only", runTest(testCase{
		input: "2025-06-02",
		want:  time.Date(2025, 6, 2, 0, 0, 0, 0, tokyo),
		ok:    true,
	}))
	t.Run("garbage", runTest(testCase{
		input: "next tuesday",
		ok:    false,
	}))
}
