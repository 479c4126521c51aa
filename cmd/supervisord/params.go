package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/0mdb/robot-buddy-supervisor/internal/params"
)

func newParamsCmd() *cobra.Command {
	var paramsPath string
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Inspect or edit the persisted runtime-param file",
	}
	cmd.PersistentFlags().StringVar(&paramsPath, "params-path", "./robot-buddy-params.json", "persisted runtime-param JSON file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every registered param and its current value",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := params.DefaultRegistry()
			params.NewStore(paramsPath, nil).Load(reg)
			printParamsTable(reg.GetAll())
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get NAME",
		Short: "Print one param's current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := params.DefaultRegistry()
			params.NewStore(paramsPath, nil).Load(reg)
			d, ok := reg.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown param: %s", args[0])
			}
			fmt.Println(d.Value)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set NAME VALUE",
		Short: "Set one runtime-mutable param and persist it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := params.DefaultRegistry()
			store := params.NewStore(paramsPath, nil)
			store.Load(reg)
			reg.OnChange(store.OnChange)

			value, err := parseParamValue(args[1])
			if err != nil {
				return err
			}
			if err := reg.Set(args[0], value); err != nil {
				return err
			}
			fmt.Printf("%s = %v\n", args[0], value)
			return nil
		},
	}

	cmd.AddCommand(listCmd, getCmd, setCmd)
	return cmd
}

// parseParamValue tries int, then float, then bool, then falls back to
// the raw string (e.g. for a future string-kind param).
func parseParamValue(raw string) (any, error) {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f, nil
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b, nil
	}
	return raw, nil
}

func printParamsTable(defs []params.Def) {
	colored := term.IsTerminal(int(os.Stdout.Fd()))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"name", "value", "kind", "mutable", "owner", "doc"})
	table.SetAutoWrapText(false)
	if !colored {
		table.SetBorder(false)
	}
	for _, d := range defs {
		table.Append([]string{d.Name, fmt.Sprintf("%v", d.Value), string(d.Kind), string(d.Mutable), d.Owner, d.Doc})
	}
	table.Render()
}
