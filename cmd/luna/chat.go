package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/lunacore/luna/internal/lunaerr"
	"github.com/lunacore/luna/internal/orchestrator"
)

// ChatCmd issues a single-turn request against the governor core and prints
// the response.
type ChatCmd struct {
	Text      string `arg:"" help:"The message to send." placeholder:"TEXT"`
	SessionID string `help:"Session identifier, for rate limiting and history." default:""`
}

func (c *ChatCmd) Run(cli *CLI, ctx context.Context) error {
	if strings.TrimSpace(c.Text) == "" {
		return lunaerr.New(lunaerr.InputValidation, "chat", fmt.Errorf("text must not be empty"))
	}

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

	resp, err := o.Handle(ctx, orchestrator.Request{
		UserText:  c.Text,
		SessionID: c.SessionID,
	})
	if err != nil {
		return err
	}

	if !resp.ShouldRespond {
		fmt.Printf("[declined: %s]\n", resp.Reasoning)
		return nil
	}

	fmt.Println(resp.Text)
	if resp.Degraded {
		fmt.Printf("(degraded: %s)\n", resp.Reasoning)
	}
	fmt.Printf("[tier=%s tokens=%d karma=%.1f]\n", resp.Tier, resp.TokensRemaining, resp.KarmaPool)
	return nil
}
