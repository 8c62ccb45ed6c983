package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newPlayersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "players",
		Short: "Player record commands",
	}

	cmd.AddCommand(newPlayersListCmd())
	cmd.AddCommand(newPlayersUpdateCmd())

	return cmd
}

func newPlayersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all players",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result PlayerList

			if err := client.Get("/api/players", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}

func newPlayersUpdateCmd() *cobra.Command {
	var (
		username, faction, rarity, typ string
		level, xp, energy, health     int
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{}
			flags := cmd.Flags()
			if flags.Changed("username") {
				req["username"] = username
			}
			if flags.Changed("level") {
				req["level"] = level
			}
			if flags.Changed("xp") {
				req["xp"] = xp
			}
			if flags.Changed("energy") {
				req["energy"] = energy
			}
			if flags.Changed("health") {
				req["health"] = health
			}
			if flags.Changed("faction") {
				req["faction"] = faction
			}
			if flags.Changed("rarity") {
				req["rarity"] = rarity
			}
			if flags.Changed("type") {
				req["type"] = typ
			}
			if len(req) == 0 {
				return fmt.Errorf("at least one field flag is required")
			}

			var result Player
			if err := client.Put("/api/players/"+url.PathEscape(args[0]), req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username")
	cmd.Flags().IntVar(&level, "level", 0, "Level (>= 1)")
	cmd.Flags().IntVar(&xp, "xp", 0, "Experience (>= 0)")
	cmd.Flags().IntVar(&energy, "energy", 0, "Energy")
	cmd.Flags().IntVar(&health, "health", 0, "Health")
	cmd.Flags().StringVar(&faction, "faction", "", "Faction")
	cmd.Flags().StringVar(&rarity, "rarity", "", "Rarity: Common, Uncommon, Rare, Epic, Legendary")
	cmd.Flags().StringVar(&typ, "type", "", "Type: Fire, Water, Ice, Electric, Earth")

	return cmd
}
