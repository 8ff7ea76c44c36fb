package wizard

import (
	"errors"
	"fmt"

	"github.com/joelkehle/patrol-report/internal/report"
)

// Outcome is what a call to Next did.
type Outcome string

const (
	OutcomeAdvanced             Outcome = "advanced"
	OutcomeConfirmationRequired Outcome = "confirmation_required"
	OutcomeGenerate             Outcome = "generate"
)

var ErrNoPendingConfirmation = errors.New("no confirmation pending")

// Controller walks one report through the wizard steps. It is not safe for
// concurrent use; Session serializes access.
type Controller struct {
	data           report.Data
	step           int
	awaitingJockey bool
}

func NewController() *Controller {
	return &Controller{data: report.NewData(), step: report.FirstStep}
}

func (c *Controller) Step() int { return c.step }

// Data returns a copy of the record.
func (c *Controller) Data() report.Data { return c.data.Clone() }

// Edit applies fn to the record. Edits are allowed at any step, including
// while a confirmation is open.
func (c *Controller) Edit(fn func(*report.Data) error) error {
	next := c.data.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	c.data = next
	return nil
}

// AwaitingConfirmation is true while the jockey pump prompt is open.
func (c *Controller) AwaitingConfirmation() bool { return c.awaitingJockey }

// CanAdvance reports whether the current step's required fields are filled.
func (c *Controller) CanAdvance() bool {
	return report.IsStepComplete(c.data, c.step)
}

// Next moves forward one step. Leaving the storage step while the jockey pump
// is cycling under the threshold, with no hydrant leak reported and no prior
// acknowledgement, opens the confirmation prompt instead. From the last step
// Next asks for the report to be generated and stays put.
func (c *Controller) Next() Outcome {
	if c.step == report.StepStorage && c.needsJockeyConfirmation() {
		c.awaitingJockey = true
		return OutcomeConfirmationRequired
	}
	// The prompt never outlives the step it was raised on.
	c.awaitingJockey = false
	if c.step >= report.LastStep {
		return OutcomeGenerate
	}
	c.step++
	return OutcomeAdvanced
}

func (c *Controller) needsJockeyConfirmation() bool {
	return report.JockeyRunsFrequently(c.data) && !c.data.HydrantLineLeak && !c.data.JockeyWarningConfirmed
}

// Prev moves back one step, never below the first. It also dismisses an
// open confirmation prompt.
func (c *Controller) Prev() {
	c.awaitingJockey = false
	if c.step > report.FirstStep {
		c.step--
	}
}

// ConfirmJockey records the guard's acknowledgement and continues to the
// power step.
func (c *Controller) ConfirmJockey() error {
	if !c.awaitingJockey {
		return ErrNoPendingConfirmation
	}
	c.awaitingJockey = false
	c.data.JockeyWarningConfirmed = true
	c.step = report.StepPower
	return nil
}

// DeclineJockey closes the prompt and stays on the storage step.
func (c *Controller) DeclineJockey() error {
	if !c.awaitingJockey {
		return ErrNoPendingConfirmation
	}
	c.awaitingJockey = false
	return nil
}

// JockeyPrompt is the question put to the guard when the prompt opens.
func (c *Controller) JockeyPrompt() string {
	return fmt.Sprintf("Jockey pump is running frequently (every %s mins). "+
		"Please confirm whether hydrant line, sprinklers, flanges of monitors, and hydrant posts have been checked by you?",
		c.data.JockeyPumpRuntime)
}
