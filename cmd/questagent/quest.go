package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/antoniostano/questagent/internal/app"
	"github.com/antoniostano/questagent/internal/ledger"
	"github.com/antoniostano/questagent/internal/quest"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve and print the target canister id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, target := app.BuildLedger(cmd.Context(), cfg, logger, nil, nil)
		return printJSON(map[string]string{
			"canister_id": target.CanisterID,
			"network":     target.Network,
			"source":      string(target.Source),
		})
	},
}

var questCmd = &cobra.Command{
	Use:   "quest",
	Short: "Read-only quest queries against the ledger",
}

var questNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next available quest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client := questClient(cmd)
		q, found, err := client.FetchNextQuest(cmd.Context())
		if err != nil {
			return err
		}
		printQuest(q, found)
		return nil
	},
}

var questAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Show the summary of all quests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		summary, err := questClient(cmd).FetchAllQuestsSummary(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(summary)
		return nil
	},
}

var questCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show the number of quests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		n, err := questClient(cmd).QuestCount(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

var questGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show one quest by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("quest id must be a natural number: %w", err)
		}
		q, found, err := questClient(cmd).QuestByID(cmd.Context(), id)
		if err != nil {
			return err
		}
		printQuest(q, found)
		return nil
	},
}

func questClient(cmd *cobra.Command) *ledger.Client {
	client, _ := app.BuildLedger(cmd.Context(), cfg, logger, nil, nil)
	return client
}

func printQuest(q quest.Quest, found bool) {
	if !found || !q.Usable() {
		fmt.Println("No quests available at the moment.")
		return
	}
	fmt.Println(q.Block())
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
