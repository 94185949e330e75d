package main_test

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/digiself/app"
	"github.com/m-mizutani/digiself/client"
	main "github.com/m-mizutani/digiself/cmd/digiself"
	"github.com/m-mizutani/gt"
)

type scriptedReader struct {
	lines []string
	out   bytes.Buffer
}

func (r *scriptedReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptedReader) Stdout() io.Writer {
	return &r.out
}

func TestRunChat(t *testing.T) {
	ctx := context.Background()
	llm := &fakeLLM{text: `{"reply":"Noted.","actions":[
		{"type":"CREATE_DIARY","payload":{"title":"Walk"}},
		{"type":"SET_FOCUS","payload":{"focusText":"rest"}},
		{"type":"FLY"}
	]}`}
	x, repo := newApp(t, app.WithAssistant(digiself.NewAssistant(llm)))
	srv := httptest.NewServer(main.NewServer(x).Handler())
	t.Cleanup(srv.Close)

	c, err := client.New(srv.URL)
	gt.NoError(t, err)
	ws := client.NewWorkspace(c, client.WithReducerOptions(digiself.WithLocation(time.UTC)))
	gt.NoError(t, ws.Load(ctx))

	rl := &scriptedReader{lines: []string{"", "I went for a walk", "/state", "/quit", "never read"}}
	gt.NoError(t, main.RunChat(ctx, rl, ws))

	out := rl.out.String()
	gt.S(t, out).Contains("Noted.")
	gt.S(t, out).Contains(`+ CREATE_DIARY diary "Walk" (Reflection)`)
	gt.S(t, out).Contains("+ SET_FOCUS focus [rest]")
	gt.S(t, out).Contains("- FLY skipped")
	gt.S(t, out).Contains("diary: 1 entries")
	gt.A(t, rl.lines).Length(1)

	diary, err := repo.ListDiary(ctx)
	gt.NoError(t, err)
	gt.A(t, diary).Length(1)
	gt.Equal(t, diary[0].ID, ws.State().Diary[0].ID)
}

func TestSummarizeEffect(t *testing.T) {
	start := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)

	testCases := map[string]struct {
		eff  digiself.Effect
		want string
	}{
		"meeting": {
			eff: digiself.Effect{
				Type: digiself.ActionCreateMeeting, Applied: true,
				Meeting: &digiself.Meeting{Title: "Sync", StartTime: start},
			},
			want: `+ CREATE_MEETING meeting "Sync" at 2025-03-11 09:00`,
		},
		"unsaved notification": {
			eff: digiself.Effect{
				Type: digiself.ActionSendEmail, Applied: true,
				Notification: &digiself.Notification{Message: "Email sent to bob"},
				Error:        "boom",
			},
			want: `+ SEND_EMAIL notification "Email sent to bob" (not saved: boom)`,
		},
		"mode": {
			eff:  digiself.Effect{Type: digiself.ActionSetMode, Applied: true, Mode: "work"},
			want: "+ SET_MODE mode work",
		},
		"skipped": {
			eff:  digiself.Effect{Type: digiself.ActionMemorize, Reason: "content is empty"},
			want: "- MEMORIZE skipped: content is empty",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			gt.Equal(t, main.SummarizeEffect(tc.eff), tc.want)
		})
	}
}

func TestPrintState(t *testing.T) {
	var buf strings.Builder
	main.PrintState(&buf, digiself.State{
		Mode:  "work",
		Focus: []string{"a", "b"},
		Notifications: []digiself.Notification{
			{ID: "1", Read: true},
			{ID: "2"},
		},
	})
	gt.S(t, buf.String()).Contains("mode: work")
	gt.S(t, buf.String()).Contains("focus: a, b")
	gt.S(t, buf.String()).Contains("notifications: 1 unread")
}

func TestNewLogger(t *testing.T) {
	_, err := main.NewLogger("json", "debug")
	gt.NoError(t, err)

	_, err = main.NewLogger("xml", "info")
	gt.Error(t, err)

	_, err = main.NewLogger("text", "loud")
	gt.Error(t, err)
}
