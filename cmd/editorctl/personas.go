package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"basegraph.app/editorial/internal/persona"
)

func personasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "personas",
		Short: "List or show editor personas",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the persona catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := persona.DefaultCatalog()
			if err != nil {
				return err
			}
			active, _ := cmd.Flags().GetString("active")
			fmt.Fprintln(cmd.OutOrStdout(), persona.FormatList(catalog, active))
			return nil
		},
	}
	list.Flags().String("active", persona.SystemDefault, "Persona marked as active")

	show := &cobra.Command{
		Use:   "show [id]",
		Short: "Print the prompt section a persona renders to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := persona.DefaultCatalog()
			if err != nil {
				return err
			}
			profile, err := catalog.Lookup(args[0], "cli")
			if err != nil {
				return err
			}
			delta, _ := cmd.Flags().GetInt("intensity")
			profile.Traits = profile.Traits.Shifted(delta)
			fmt.Fprintln(cmd.OutOrStdout(), persona.FormatForPrompt(profile, catalog))
			return nil
		},
	}
	show.Flags().IntP("intensity", "i", 0, "Intensity delta applied to the traits")

	cmd.AddCommand(list, show)
	return cmd
}
