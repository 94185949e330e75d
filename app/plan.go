package app

import (
	"context"
	"time"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/digiself/calendar"
	"github.com/m-mizutani/digiself/trace"
	"github.com/m-mizutani/goerr/v2"
)

// ExecutePlan applies actions in order to a snapshot of the state and
// persists the effect of each one. A skipped action or a failed write does
// not stop the plan; the failure is recorded in Effect.Error. An error is
// returned only when the state cannot be loaded.
func (x *App) ExecutePlan(ctx context.Context, actions []digiself.PlannerAction) (effects []digiself.Effect, err error) {
	if x.newTrace != nil {
		h := x.newTrace()
		ctx = trace.WithHandler(ctx, h)
		ctx = h.StartTurn(ctx, trace.SpanKindPlan)
		defer func() {
			h.EndTurn(ctx, err)
			if finishErr := h.Finish(ctx); finishErr != nil {
				x.logger.Warn("failed to finish trace", "error", finishErr)
			}
		}()
	}

	state, err := x.State(ctx)
	if err != nil {
		return nil, err
	}

	effects = make([]digiself.Effect, 0, len(actions))
	for _, action := range actions {
		var eff digiself.Effect
		state, eff = x.applyAction(ctx, state, action)
		effects = append(effects, eff)
	}
	return effects, nil
}

func (x *App) applyAction(ctx context.Context, state digiself.State, action digiself.PlannerAction) (digiself.State, digiself.Effect) {
	h := trace.HandlerFrom(ctx)
	if h != nil {
		ctx = h.StartAction(ctx, digiself.TraceAction(action))
	}

	next, eff := x.reducer.Apply(state, action)

	var persistErr error
	if eff.Applied {
		if persistErr = x.persist(ctx, &eff); persistErr != nil {
			eff.Error = persistErr.Error()
			x.logger.Error("failed to persist planner action",
				"effect", eff,
				"error", persistErr,
			)
		}
	}

	if h != nil {
		h.EndAction(ctx, eff.Applied, eff.Reason, persistErr)
	}
	return next, eff
}

// executeOne runs a single action and turns a skipped action into
// ErrInvalidParameter.
func (x *App) executeOne(ctx context.Context, action digiself.PlannerAction) (*digiself.Effect, error) {
	state, err := x.State(ctx)
	if err != nil {
		return nil, err
	}

	_, eff := x.reducer.Apply(state, action)
	if !eff.Applied {
		return nil, goerr.Wrap(digiself.ErrInvalidParameter, eff.Reason, goerr.V("type", action.Type))
	}
	adoptClientFields(&eff, action.Payload)

	if err := x.persist(ctx, &eff); err != nil {
		return nil, err
	}
	return &eff, nil
}

// adoptClientFields keeps the id and creation time a client already assigned
// to the entity, so that an optimistic mirror and the server agree on both.
// Notifications also keep the client's kind and link.
func adoptClientFields(eff *digiself.Effect, p digiself.Payload) {
	id, hasID := p.String("id")
	createdAt, hasCreatedAt := p.Time(time.UTC, "createdAt")
	adopt := func(dstID *string, dstCreatedAt *time.Time) {
		if hasID {
			*dstID = id
		}
		if hasCreatedAt {
			*dstCreatedAt = createdAt
		}
	}

	switch {
	case eff.Diary != nil:
		adopt(&eff.Diary.ID, &eff.Diary.CreatedAt)
	case eff.Meeting != nil:
		adopt(&eff.Meeting.ID, &eff.Meeting.CreatedAt)
	case eff.Memory != nil:
		adopt(&eff.Memory.ID, &eff.Memory.CreatedAt)
	case eff.Notification != nil:
		adopt(&eff.Notification.ID, &eff.Notification.CreatedAt)
		switch kind := digiself.NotificationKind(p.StringOr("", "kind")); kind {
		case digiself.NotificationKindEmail, digiself.NotificationKindVideo:
			eff.Notification.Kind = kind
		}
		if link, ok := p.String("link"); ok {
			eff.Notification.Link = link
		}
	}
}

// persist writes the change described by eff. Meetings are mirrored to the
// calendar and memories embedded first; both degrade silently.
func (x *App) persist(ctx context.Context, eff *digiself.Effect) error {
	switch {
	case eff.Diary != nil:
		return x.repo.PutDiary(ctx, *eff.Diary)

	case eff.Meeting != nil:
		mirrored := calendar.Mirror(ctx, x.calendar, *eff.Meeting, x.logger)
		eff.Meeting = &mirrored
		return x.repo.PutMeeting(ctx, mirrored)

	case eff.Notification != nil:
		return x.repo.PutNotification(ctx, *eff.Notification)

	case eff.Memory != nil:
		if x.index != nil {
			embedded := x.index.Memorize(ctx, *eff.Memory)
			eff.Memory = &embedded
		}
		return x.repo.PutMemory(ctx, *eff.Memory)

	case eff.Type == digiself.ActionSetFocus:
		return x.repo.PutFocus(ctx, eff.Focus)

	case eff.Profile != nil:
		return x.repo.PutProfile(ctx, *eff.Profile)

	case eff.Type == digiself.ActionSetMode:
		return x.repo.PutMode(ctx, eff.Mode)
	}
	return nil
}
