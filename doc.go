// Package digiself is the core of Digital Self, a personal assistant that
// keeps a diary, meetings, notifications, a focus list, memories and a
// profile, and lets an LLM change them through planner actions.
//
// The assistant answers with an AssistantResponse: a reply for the user and
// an ordered list of PlannerAction. A Reducer applies the actions to a State
// as a pure fold. Unknown or unusable actions leave the state unchanged and
// never stop the remaining ones.
//
//	resp, err := assistant.Chat(ctx, digiself.ChatRequest{Message: msg, State: state})
//	if err != nil {
//		return err
//	}
//	state, effects := digiself.NewReducer().ApplyAll(state, resp.Actions)
package digiself
