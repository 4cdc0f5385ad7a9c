package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"smartport-go/services/vdml"
	"smartport-go/types"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "Print the port table after applying the config",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctl, err := vdml.NewFromConfig(cfg, vdml.WithLogger(newLogger(cmd, cfg)))
		if err != nil {
			return err
		}
		defer ctl.Close()
		all, _ := cmd.Flags().GetBool("all")
		return printPorts(cmd.OutOrStdout(), ctl.Snapshot(), all)
	},
}

func init() {
	portsCmd.Flags().Bool("all", false, "include empty ports")
	rootCmd.AddCommand(portsCmd)
}

func printPorts(w io.Writer, ports []types.PortState, all bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PORT\tTYPE\tGEN\tCLAIMED")
	for _, p := range ports {
		if !all && !p.Installed() {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%t\n", p.Port, p.Type, p.Generation, p.Claimed)
	}
	return tw.Flush()
}
