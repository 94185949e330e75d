package digiself

import (
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

//go:embed templates/system_prompt.md
var systemPromptTemplate string

var systemPromptTmpl = template.Must(template.New("system_prompt").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(systemPromptTemplate))

const (
	promptMeetingLimit = 5
	promptDiaryLimit   = 5
)

type systemPromptData struct {
	Persona  Persona
	Modes    []string
	Now      string
	Timezone string
	Profile  Profile
	Mode     string
	Focus    []string
	Meetings []Meeting
	Diary    []DiaryEntry
	Memories []Memory
}

// buildSystemPrompt renders the planner system prompt for the given state.
func buildSystemPrompt(personas *Personas, state State, memories []Memory, now time.Time) (string, error) {
	loc := time.Local
	if state.Profile.Timezone != "" {
		if l, err := time.LoadLocation(state.Profile.Timezone); err == nil {
			loc = l
		}
	}

	diary := state.Diary
	if len(diary) > promptDiaryLimit {
		diary = diary[len(diary)-promptDiaryLimit:]
	}

	persona := personas.Resolve(state.Mode)
	data := systemPromptData{
		Persona:  persona,
		Modes:    personas.Names(),
		Now:      now.In(loc).Format(time.RFC3339),
		Timezone: loc.String(),
		Profile:  state.Profile,
		Mode:     persona.Name,
		Focus:    state.Focus,
		Meetings: state.UpcomingMeetings(now, promptMeetingLimit),
		Diary:    diary,
		Memories: memories,
	}

	var b strings.Builder
	if err := systemPromptTmpl.Execute(&b, data); err != nil {
		return "", goerr.Wrap(err, "failed to render system prompt")
	}
	return b.String(), nil
}
