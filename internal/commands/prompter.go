package commands

import "github.com/charmbracelet/huh"

// HuhPrompter asks yes/no questions through an interactive huh form. It
// backs the ServiceNow permission gate.
type HuhPrompter struct{}

func (HuhPrompter) Confirm(title, description string) (bool, error) {
	var confirmed bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Allow").
			Negative("Deny").
			Value(&confirmed),
	))
	if err := form.Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}
