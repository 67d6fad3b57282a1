package steps

import (
	"fmt"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Step)

	builtinsOnce sync.Once
)

// Deps carries the external collaborators the built-in steps need.
type Deps struct {
	Files            Downloader
	ConsentPolicyURL string
}

// RegisterBuiltins registers the step for every conversation state.
func RegisterBuiltins(deps Deps) {
	builtinsOnce.Do(func() {
		registerStep(NewConsentStep(deps.ConsentPolicyURL))
		registerStep(NewNameStep())
		registerStep(NewEmailStep())
		registerStep(NewMessageStep())
		registerStep(NewFileChoiceStep())
		registerStep(NewFileUploadStep(deps.Files))
		registerStep(NewForwardedEmailStep())
	})
}

func registerStep(step Step) {
	if step == nil {
		panic("cannot register nil step")
	}
	MustRegister(step)
}

// MustRegister adds a step to the registry, panicking on duplicate states.
func MustRegister(step Step) {
	if step == nil {
		panic("cannot register nil step")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[step.State()]; exists {
		panic(fmt.Sprintf("step for state '%s' already registered", step.State()))
	}

	registry[step.State()] = step
}

// Get returns the step for the given state, or nil when absent.
func Get(stateName string) Step {
	registryMu.RLock()
	defer registryMu.RUnlock()

	return registry[stateName]
}

// MustGet returns the registered step, panicking when it is missing.
func MustGet(stateName string) Step {
	step := Get(stateName)
	if step == nil {
		panic(fmt.Sprintf("no step registered for state '%s'", stateName))
	}
	return step
}

// resetRegistryForTests wipes registration state. Only used inside unit tests.
func resetRegistryForTests() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Step)
	builtinsOnce = sync.Once{}
}
