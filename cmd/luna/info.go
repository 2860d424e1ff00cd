package main

import (
	"context"
	"fmt"
)

// InfoCmd prints the current persisted Existential/CFIA state without
// issuing any LLM calls.
type InfoCmd struct{}

func (c *InfoCmd) Run(cli *CLI, ctx context.Context) error {
	appCfg, loader, err := loadConfig(ctx, cli)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	o, err := buildOrchestrator(appCfg)
	if err != nil {
		return fmt.Errorf("building orchestrator: %w", err)
	}

	budgetState := o.BudgetState()
	cfiaState := o.CFIAState()
	shadow := o.ShadowScoreReport()

	fmt.Printf("generation age:     %d\n", budgetState.Age)
	fmt.Printf("token pool:         %d / %d\n", budgetState.CurrentTokenPool, budgetState.MaxTokenPool)
	fmt.Printf("karma:              %.2f / %.2f\n", budgetState.CurrentKarma, budgetState.KarmaQuota)
	fmt.Printf("total responses:    %d\n", budgetState.TotalResponses)
	fmt.Printf("anxiety level:      %.2f\n", budgetState.ExistentialAnxietyLevel)
	fmt.Printf("AIIQ:               %d\n", cfiaState.AIIQ)
	fmt.Printf("karma pool (cfia):  %.2f\n", cfiaState.KarmaPool)
	fmt.Printf("total files:        %d\n", cfiaState.TotalFiles)
	fmt.Printf("shadow ledger:      %d records, %d empathy choices, %d efficiency choices\n",
		shadow.TotalRecords, shadow.EmpathyChoices, shadow.EfficiencyChoices)
	return nil
}
