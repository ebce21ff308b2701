package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sitewake/internal/sites"
)

// newListCmd prints the configured sites.
func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured sites",
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := sites.Load(sitesPath())
			if err != nil {
				return fmt.Errorf("load sites: %w", err)
			}
			if len(list) == 0 {
				fmt.Println("No sites configured.")
				return nil
			}
			fmt.Printf("Configured sites (%d):\n", len(list))
			fmt.Println(strings.Repeat("-", 60))
			for _, s := range list {
				var flags []string
				if s.IsStreamlit {
					flags = append(flags, "streamlit")
				}
				if s.LogRaw {
					flags = append(flags, "debug")
				}
				suffix := ""
				if len(flags) > 0 {
					suffix = " [" + strings.Join(flags, ", ") + "]"
				}
				fmt.Printf("* %-20s %-40s%s\n", s.Name, s.URL, suffix)
				fmt.Printf("  must contain: %q\n", s.MustContain)
			}
			return nil
		},
	}
}

// newAddCmd appends a site to the configuration.
func newAddCmd() *cobra.Command {
	var (
		streamlit bool
		logRaw    bool
		selector  string
	)
	cmd := &cobra.Command{
		Use:   "add <name> <url> <must-contain>",
		Short: "Add a site to the configuration",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			site := sites.Site{
				Name:        args[0],
				URL:         args[1],
				MustContain: args[2],
				IsStreamlit: streamlit,
				LogRaw:      logRaw,
				Selector:    selector,
			}
			if err := site.Validate(); err != nil {
				return err
			}
			if err := sites.Add(sitesPath(), site); err != nil {
				return fmt.Errorf("add site: %w", err)
			}
			fmt.Printf("Added site %q (%s)\n", site.Name, site.URL)
			return nil
		},
	}
	cmd.Flags().BoolVar(&streamlit, "streamlit", false, "site is a Streamlit app")
	cmd.Flags().BoolVar(&logRaw, "debug", false, "persist raw rendered markup on every check")
	cmd.Flags().StringVar(&selector, "selector", "", "override the wake-up control selector")
	return cmd
}

// newRemoveCmd deletes a site from the configuration.
func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a site from the configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sites.Remove(sitesPath(), args[0]); err != nil {
				return fmt.Errorf("remove site: %w", err)
			}
			fmt.Printf("Removed site %q\n", args[0])
			return nil
		},
	}
}

// newValidateCmd checks the configuration file without touching the network.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the sites configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := sites.Load(sitesPath())
			if err != nil {
				return fmt.Errorf("configuration invalid: %w", err)
			}
			if len(list) == 0 {
				fmt.Println("No sites configured.")
				return nil
			}
			fmt.Printf("Configuration is valid (%d sites)\n", len(list))
			for _, s := range list {
				fmt.Printf("  ok %s\n", s.Name)
			}
			return nil
		},
	}
}
