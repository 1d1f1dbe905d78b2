package interactive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/sahilm/fuzzy"

	"github.com/daoservice/govsync/internal/domain/config"
	"github.com/daoservice/govsync/internal/domain/models"
	"github.com/daoservice/govsync/internal/usecase"
)

// SelectorAdapter handles interactive selection and confirmation
type SelectorAdapter struct {
	config *config.RuntimeConfig
}

// NewSelectorAdapter creates a new selector adapter
func NewSelectorAdapter(cfg *config.RuntimeConfig) *SelectorAdapter {
	return &SelectorAdapter{config: cfg}
}

// SelectDAO lets the user pick one DAO out of candidates
func (s *SelectorAdapter) SelectDAO(ctx context.Context, candidates []*models.DAO, prompt string) (*models.DAO, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no DAOs provided for selection")
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	// In non-interactive mode, we can't select
	if s.config.NonInteractive {
		return nil, fmt.Errorf("%d DAOs match, pass the DAO id or governor address in non-interactive mode", len(candidates))
	}

	options := formatDAOOptions(candidates)
	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "▸ {{ . | cyan }}",
		Inactive: "  {{ . | faint }}",
		Selected: "✓ {{ . | green }}",
		Help:     color.New(color.FgYellow).Sprint("Use arrow keys to navigate, Enter to select"),
	}

	promptSelect := promptui.Select{
		Label:             prompt,
		Items:             options,
		Templates:         templates,
		Size:              10,
		StartInSearchMode: true,
		Searcher:          createFuzzySearchFunc(options),
	}

	index, _, err := promptSelect.Run()
	if err != nil {
		return nil, fmt.Errorf("selection cancelled: %w", err)
	}
	return candidates[index], nil
}

// Confirm asks a yes/no question. --yes answers yes, --non-interactive
// without --yes refuses.
func (s *SelectorAdapter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if s.config.AssumeYes {
		return true, nil
	}
	if s.config.NonInteractive || s.config.JSON {
		return false, fmt.Errorf("confirmation required for %q, pass --yes", prompt)
	}

	p := promptui.Prompt{
		Label:     prompt,
		IsConfirm: true,
	}
	if _, err := p.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation cancelled: %w", err)
	}
	return true, nil
}

// formatDAOOptions creates display strings like "Name (0xGovernor)"
func formatDAOOptions(daos []*models.DAO) []string {
	options := make([]string, len(daos))
	for i, dao := range daos {
		name := color.New(color.FgWhite, color.Bold).Sprint(dao.Name)
		gov := color.New(color.FgBlue).Sprint(dao.GovernorAddress)
		options[i] = fmt.Sprintf("%s (%s)", name, gov)
	}
	return options
}

// createFuzzySearchFunc creates a fuzzy search function for promptui
func createFuzzySearchFunc(items []string) func(input string, index int) bool {
	return func(input string, index int) bool {
		// Empty search shows all items
		if input == "" {
			return true
		}

		input = strings.ToLower(input)
		item := strings.ToLower(items[index])
		if strings.Contains(item, input) {
			return true
		}
		return len(fuzzy.Find(input, []string{item})) > 0
	}
}

var (
	_ usecase.DAOSelector = (*SelectorAdapter)(nil)
	_ usecase.Confirmer   = (*SelectorAdapter)(nil)
)
