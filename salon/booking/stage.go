package booking

import (
	"errors"
	"fmt"
	"slices"

	"github.com/m3rciful/salonbot/core/session"
)

// Booking flow stages. StageIdle is shared with the session package.
const (
	StageIdle                   session.Stage = session.StageIdle
	StageServiceChosen          session.Stage = "service_chosen"
	StageMasterChosen           session.Stage = "master_chosen"
	StageDateChosen             session.Stage = "date_chosen"
	StageTimeChosen             session.Stage = "time_chosen"
	StageAwaitingConfirmation   session.Stage = "awaiting_confirmation"
	StageConfirmed              session.Stage = "confirmed"
	StageListingOwnBookings     session.Stage = "listing_own_bookings"
	StageConfirmingCancellation session.Stage = "confirming_cancellation"
	StageCancelled              session.Stage = "cancelled"

	// StageCommitting and StageCancelling hold a session while its booking
	// log call is in flight. No button action starts from them.
	StageCommitting session.Stage = "committing"
	StageCancelling session.Stage = "cancelling"
)

// ActionKind enumerates user intents.
type ActionKind string

const (
	ActMenu          ActionKind = "menu"
	ActBook          ActionKind = "book"
	ActSelectService ActionKind = "service"
	ActSelectMaster  ActionKind = "master"
	ActCalendar      ActionKind = "cal"
	ActCalendarPage  ActionKind = "cal_page"
	ActSelectDate    ActionKind = "date"
	ActSelectTime    ActionKind = "time"
	ActSummaryShown  ActionKind = "summary_shown"
	ActConfirm       ActionKind = "confirm"
	ActMyBookings    ActionKind = "mine"
	ActCancelList    ActionKind = "cancel_list"
	ActCancelPick    ActionKind = "cancel_pick"
	ActCancelApprove ActionKind = "cancel_ok"
)

// ButtonActions lists the kinds carried by inline buttons. The kind doubles
// as the button's callback key.
func ButtonActions() []ActionKind {
	return []ActionKind{
		ActMenu, ActBook, ActSelectService, ActSelectMaster, ActCalendar,
		ActSelectTime, ActConfirm, ActMyBookings, ActCancelList,
		ActCancelPick, ActCancelApprove,
	}
}

// Effect names the side effect a transition asks for.
type Effect int

const (
	EffectNone Effect = iota
	EffectShowMenu
	EffectShowServices
	EffectShowMasters
	EffectShowCalendar
	EffectShowTimes
	EffectShowSummary
	EffectCommit
	EffectShowBookings
	EffectShowCancelList
	EffectAskCancel
	EffectCancel
)

var (
	ErrUnknownAction     = errors.New("booking: unknown action")
	ErrIllegalTransition = errors.New("booking: illegal transition")
	// ErrStaleAction marks an action that lost a race against another update
	// of the same session, or that refers to an outdated message.
	ErrStaleAction = errors.New("booking: stale action")
)

type rule struct {
	from   []session.Stage // nil accepts every stage
	to     session.Stage   // empty keeps the current stage
	effect Effect
}

var selectingStages = []session.Stage{
	StageIdle, StageServiceChosen, StageMasterChosen, StageDateChosen,
	StageTimeChosen, StageAwaitingConfirmation,
}

var rules = map[ActionKind]rule{
	ActMenu:          {nil, StageIdle, EffectShowMenu},
	ActBook:          {nil, StageIdle, EffectShowServices},
	ActSelectService: {selectingStages, StageServiceChosen, EffectShowMasters},
	ActSelectMaster:  {selectingStages[1:], StageMasterChosen, EffectShowCalendar},
	ActCalendarPage:  {[]session.Stage{StageMasterChosen}, "", EffectShowCalendar},
	ActSelectDate:    {[]session.Stage{StageMasterChosen}, StageDateChosen, EffectShowTimes},
	ActSelectTime:    {[]session.Stage{StageDateChosen, StageTimeChosen}, StageTimeChosen, EffectShowSummary},
	ActSummaryShown:  {[]session.Stage{StageTimeChosen}, StageAwaitingConfirmation, EffectNone},
	ActConfirm:       {[]session.Stage{StageAwaitingConfirmation}, StageConfirmed, EffectCommit},
	ActMyBookings:    {nil, "", EffectShowBookings},
	ActCancelList:    {nil, StageListingOwnBookings, EffectShowCancelList},
	ActCancelPick: {
		[]session.Stage{StageListingOwnBookings, StageConfirmingCancellation},
		StageConfirmingCancellation, EffectAskCancel,
	},
	ActCancelApprove: {[]session.Stage{StageConfirmingCancellation}, StageCancelled, EffectCancel},
}

// Next resolves the stage reached from stage by action and the effect to run.
// It has no side effects.
func Next(stage session.Stage, action ActionKind) (session.Stage, Effect, error) {
	r, ok := rules[action]
	if !ok {
		return stage, EffectNone, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if stage == "" {
		stage = StageIdle
	}
	if r.from != nil && !slices.Contains(r.from, stage) {
		return stage, EffectNone, fmt.Errorf("%w: %s from %s", ErrIllegalTransition, action, stage)
	}
	if r.to == "" {
		return stage, r.effect, nil
	}
	return r.to, r.effect, nil
}
