package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/subhound/subhound/internal/model"
)

func detectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detections",
		Short: "Inspect detected subscriptions",
	}

	cmd.AddCommand(detectionsListCmd())

	return cmd
}

func detectionsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List detections for a user",
		RunE:  runDetectionsList,
	}

	cmd.Flags().String("user", "", "user to list detections for (required)")
	cmd.Flags().String("status", "", "filter by status (pending, confirmed, rejected, imported)")

	return cmd
}

func runDetectionsList(cmd *cobra.Command, _ []string) error {
	user, err := requireUser(cmd.Flags().GetString)
	if err != nil {
		return err
	}
	statusFilter, _ := cmd.Flags().GetString("status")

	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	detections, err := store.GetDetections(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to load detections: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tAMOUNT\tCYCLE\tCONFIDENCE\tSTATUS\tSOURCES")

	shown := 0
	for _, d := range detections {
		if statusFilter != "" && d.Status != model.DetectionStatus(statusFilter) {
			continue
		}
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%.2f\t%s\t%d\n",
			d.Name, d.Amount.StringFixed(2), d.Currency,
			d.BillingCycle, d.Confidence, d.Status, len(d.Sources))
		shown++
	}

	if err := w.Flush(); err != nil {
		return err
	}

	if shown == 0 {
		fmt.Println("No detections found. Run `subhound scan` after importing data.")
	}

	return nil
}
