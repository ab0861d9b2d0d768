package saasproto

// Event is a lifecycle request or the reported outcome of one.
type Event string

const (
	EventDeploy          Event = "deploy"
	EventDeploySucceeded Event = "deploy-succeeded"
	EventDeployFailed    Event = "deploy-failed"
	EventStop            Event = "stop"
	EventRestart         Event = "restart"
	EventRedeploy        Event = "redeploy"
	EventSuspend         Event = "suspend"
	EventDelete          Event = "delete"
	EventReset           Event = "reset"
)

// Effect is a side-effecting step the orchestrator must run, in
// order, before reporting the outcome of an event.
type Effect string

const (
	EffectPrepareDirs       Effect = "prepare-dirs"
	EffectWriteConfig       Effect = "write-config"
	EffectEnsureDatabase    Effect = "ensure-database"
	EffectInitDatabase      Effect = "init-database"
	EffectStartContainer    Effect = "start-container"
	EffectWaitReady         Effect = "wait-ready"
	EffectPublishDNS        Effect = "publish-dns"
	EffectStopContainer     Effect = "stop-container"
	EffectRestartContainer  Effect = "restart-container"
	EffectRecreateContainer Effect = "recreate-container"
	EffectTeardownContainer Effect = "teardown-container"
	EffectRemoveDir         Effect = "remove-dir"
	EffectDropDatabase      Effect = "drop-database"
	EffectRemoveDNS         Effect = "remove-dns"
	EffectReleasePorts      Effect = "release-ports"
)

type transition struct {
	from    []InstanceState
	to      InstanceState
	effects []Effect
}

var allButCancelled = []InstanceState{
	StateDraft, StateProvisioning, StateRunning, StateStopped,
	StateFailed, StateSuspended,
}

var transitions = map[Event]transition{
	EventDeploy: {
		from: []InstanceState{StateDraft, StateFailed},
		to:   StateProvisioning,
		effects: []Effect{
			EffectPrepareDirs,
			EffectWriteConfig,
			EffectEnsureDatabase,
			EffectInitDatabase,
			EffectStartContainer,
			EffectWaitReady,
			EffectPublishDNS,
		},
	},
	EventDeploySucceeded: {
		from: []InstanceState{StateProvisioning},
		to:   StateRunning,
	},
	EventDeployFailed: {
		from: []InstanceState{StateProvisioning},
		to:   StateFailed,
	},
	EventStop: {
		from:    []InstanceState{StateRunning, StateStopped},
		to:      StateStopped,
		effects: []Effect{EffectStopContainer},
	},
	EventRestart: {
		from:    []InstanceState{StateRunning, StateStopped, StateSuspended},
		to:      StateRunning,
		effects: []Effect{EffectRestartContainer},
	},
	EventRedeploy: {
		from:    []InstanceState{StateRunning, StateStopped, StateSuspended},
		to:      StateRunning,
		effects: []Effect{EffectRecreateContainer},
	},
	EventSuspend: {
		from:    []InstanceState{StateRunning, StateStopped, StateFailed, StateSuspended},
		to:      StateSuspended,
		effects: []Effect{EffectStopContainer},
	},
	EventDelete: {
		from: allButCancelled,
		to:   StateCancelled,
		effects: []Effect{
			EffectTeardownContainer,
			EffectRemoveDir,
			EffectDropDatabase,
			EffectRemoveDNS,
			EffectReleasePorts,
		},
	},
	EventReset: {
		from: []InstanceState{StateFailed, StateCancelled},
		to:   StateDraft,
	},
}

// Apply is the instance transition function. It returns the state the
// event leads to and the effects that must succeed first. It does not
// modify anything; the caller commits the new state once the effects
// have run.
func Apply(state InstanceState, ev Event) (InstanceState, []Effect, error) {
	tr, ok := transitions[ev]
	if !ok {
		return state, nil, NewValidationError("unknown event %q", ev)
	}
	for _, from := range tr.from {
		if from == state {
			effects := make([]Effect, len(tr.effects))
			copy(effects, tr.effects)
			return tr.to, effects, nil
		}
	}
	return state, nil, NewValidationError("cannot %s instance in state %s", ev, state)
}

// Apply runs the transition function against the instance's current
// state and commits the new state. The effects have to be run by the
// caller beforehand; use the package level Apply to plan them.
func (s *Instance) Apply(ev Event) error {
	next, _, err := Apply(s.State, ev)
	if err != nil {
		return err
	}
	s.State = next
	return nil
}

// Reachable reports whether ev is allowed from state.
func Reachable(state InstanceState, ev Event) bool {
	_, _, err := Apply(state, ev)
	return err == nil
}

// CanInstallModules reports whether modules can be installed into a
// live container.
func CanInstallModules(state InstanceState) bool {
	return state == StateRunning
}
