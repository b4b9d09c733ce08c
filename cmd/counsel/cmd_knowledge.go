package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"counsel/internal/store"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Inspect the knowledge store",
}

var knowledgeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		cs, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer cs.Close()

		st, err := cs.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("documents:  %d\n", st.Documents)
		fmt.Printf("chunks:     %d\n", st.Chunks)
		fmt.Printf("dimensions: %d\n", st.Dimensions)
		fmt.Printf("vec native: %v\n", st.VecNative)
		return nil
	},
}

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents with their IDs",
	Long: `Lists every document with the ID personas reference in their
documents: scope lists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cs, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer cs.Close()

		docs, err := cs.Documents(cmd.Context())
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Println("no documents ingested")
			return nil
		}
		for _, d := range docs {
			fmt.Printf("%s  %-30s %4d chunks  %s\n", d.ID, d.Name, d.ChunkCount, d.IngestedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var knowledgeRemoveCmd = &cobra.Command{
	Use:   "remove [document-id]",
	Short: "Delete a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cs, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer cs.Close()
		if err := cs.DeleteDocument(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("removed %s\n", args[0])
		return nil
	},
}

func init() {
	knowledgeCmd.AddCommand(knowledgeStatsCmd)
	knowledgeCmd.AddCommand(knowledgeListCmd)
	knowledgeCmd.AddCommand(knowledgeRemoveCmd)
}
