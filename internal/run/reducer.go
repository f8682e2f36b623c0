package run

import (
	"github.com/aristath/runconsole/internal/model"
)

// Apply folds one inbound message into the state and returns the new state.
// It never fails: unknown step IDs, missing fields and undecodable payloads
// leave the affected fields unchanged. The input state is not mutated.
func Apply(state RunState, in model.Inbound) RunState {
	switch in.Kind {
	case model.InboundEvent:
		return applyEvent(state, in.Event)
	case model.InboundResult:
		return applyResult(state, in.Result)
	case model.InboundError:
		next := state
		next.Conn = StateError
		next.Error = in.Error
		return next
	}
	return state
}

func applyEvent(state RunState, ev model.Event) RunState {
	if ev.TaskID != "" {
		if state.TaskID == "" {
			state.TaskID = ev.TaskID
		} else if ev.TaskID != state.TaskID {
			return state
		}
	}

	switch ev.Name {
	case model.EventPlanningStarted:
		state.Phase = PhasePlanning

	case model.EventPlanningReasoning:
		var d model.ReasoningData
		if model.DecodeData(ev.Data, &d) == nil && d.Text != "" {
			state.Reasoning = d.Text
		}

	case model.EventPlanReady:
		var d model.PlanReadyData
		if model.DecodeData(ev.Data, &d) != nil || d.Steps == nil {
			return state
		}
		steps := model.CloneSteps(d.Steps)
		for i := range steps {
			steps[i].Status = model.StepPending
			steps[i].Result = nil
			steps[i].Error = ""
		}
		state.Steps = steps
		state.Completed = 0
		state.Phase = PhaseExecuting
		if d.PlanningMS > 0 {
			state.PlanningMS = d.PlanningMS
		}
		if !d.IsReplan {
			state.ReplanReason = ""
		}

	case model.EventStepStarted:
		return updateStep(state, ev.Data, func(step *model.Step, _ model.StepData) bool {
			if step.Status != model.StepPending {
				return false
			}
			step.Status = model.StepRunning
			return true
		})

	case model.EventStepCompleted:
		return updateStep(state, ev.Data, func(step *model.Step, d model.StepData) bool {
			if step.Status.IsTerminal() {
				return false
			}
			step.Status = model.StepCompleted
			step.Result = d.Result
			return true
		})

	case model.EventStepFailed:
		return updateStep(state, ev.Data, func(step *model.Step, d model.StepData) bool {
			if step.Status.IsTerminal() {
				return false
			}
			step.Status = model.StepFailed
			step.Error = d.Error
			return true
		})

	case model.EventReplanning:
		var d model.ReplanningData
		if model.DecodeData(ev.Data, &d) == nil {
			state.ReplanReason = d.Reason
		}
		state.Phase = PhaseReplanning

	case model.EventTaskDone:
		var d model.TaskDoneData
		if model.DecodeData(ev.Data, &d) != nil {
			return state
		}
		if tr := model.DecodeTrace(d.Trace); tr != nil {
			state.Trace = tr
		}
	}

	return state
}

// updateStep applies fn to the step named in the payload on a copy of the
// step slice. A transition that fn rejects leaves the state untouched; an
// accepted completed/failed transition bumps the completed counter.
func updateStep(state RunState, data []byte, fn func(*model.Step, model.StepData) bool) RunState {
	var d model.StepData
	if model.DecodeData(data, &d) != nil {
		return state
	}
	idx := state.stepIndex(d.StepID)
	if idx < 0 {
		return state
	}

	steps := model.CloneSteps(state.Steps)
	before := steps[idx].Status
	if !fn(&steps[idx], d) {
		return state
	}
	state.Steps = steps
	if !before.IsTerminal() && steps[idx].Status.IsTerminal() {
		state.Completed++
	}
	return state
}

func applyResult(state RunState, res model.TaskResult) RunState {
	if state.TaskID != "" && res.TaskID != state.TaskID {
		return state
	}

	next := state
	next.TaskID = res.TaskID
	next.Conn = StateDone
	next.Phase = PhaseDone
	next.Result = &res
	next.Error = res.Error
	if res.DurationMS != nil {
		next.DurationMS = *res.DurationMS
	}
	if res.CostUSD != nil {
		next.CostUSD = *res.CostUSD
	}
	if tr := model.DecodeTrace(res.Trace); tr != nil {
		next.Trace = tr
	}
	return next
}
