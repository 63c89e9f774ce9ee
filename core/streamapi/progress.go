package streamapi

// Step is a stage of a claim. Its String form is the status text shown
// while the stage runs.
type Step int

const (
	StepFindKey Step = iota
	StepFindFeeCoins
	StepFundFeeAddress
	StepAwaitFunding
	StepPrepare
	StepAwaitSignature
	StepSubmit
	StepAwaitInclusion
	StepDone
)

var stepText = map[Step]string{
	StepFindKey:        "Searching for public key...",
	StepFindFeeCoins:   "Searching for source coin...",
	StepFundFeeAddress: "[Wallet Prompt] Sending coins to the right address...",
	StepAwaitFunding:   "Waiting for source coin...",
	StepPrepare:        "Preparing transaction...",
	StepAwaitSignature: "[Wallet Prompt] Awaiting signature...",
	StepSubmit:         "Submitting bundle...",
	StepAwaitInclusion: "Awaiting block inclusion...",
	StepDone:           "Refreshing...",
}

func (s Step) String() string {
	if t, ok := stepText[s]; ok {
		return t
	}
	return "unknown step"
}

// ProgressObserver is told about every step a claim enters.
type ProgressObserver func(Step)

func (o ProgressObserver) notify(s Step) {
	if o != nil {
		o(s)
	}
}
