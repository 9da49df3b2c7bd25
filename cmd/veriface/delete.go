package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/veriface/platform/internal/store"
)

var deleteID string

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove an enrolled employee",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("delete requires DATABASE_URL")
		}

		pool, err := store.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		repo := store.NewEmployeeRepo(pool, cfg.EmbeddingDim)
		if err := repo.Delete(ctx, deleteID); err != nil {
			return err
		}
		slog.Info("employee removed", "id", deleteID)
		return nil
	},
}

func init() {
	deleteCmd.Flags().StringVar(&deleteID, "id", "", "Employee id")
	_ = deleteCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(deleteCmd)
}
