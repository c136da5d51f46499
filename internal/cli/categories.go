package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gzhole/shellgate/internal/category"
)

var categoriesJSON bool

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the command categories and how each is gated",
	RunE: func(cmd *cobra.Command, args []string) error {
		cats := category.NewCategorizer().Categories()
		if categoriesJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cats)
		}
		for _, c := range cats {
			fmt.Printf("%-20s %-8s confirm=%-5v sandbox=%-5v %s\n",
				c.Name, c.RiskLevel, c.RequiresConfirmation, c.AllowedInSandbox, c.Description)
		}
		return nil
	},
}

func init() {
	categoriesCmd.Flags().BoolVar(&categoriesJSON, "json", false, "Print categories as JSON")
	rootCmd.AddCommand(categoriesCmd)
}
