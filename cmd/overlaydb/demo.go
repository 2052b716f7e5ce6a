package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/orneryd/overlaydb/pkg/nornicdb"
	"github.com/orneryd/overlaydb/pkg/storage"
)

// runDemo always runs against an in-memory database so it never touches user data.
func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Database.InMemory = true
	cfg.Database.DataDir = ""

	db, err := nornicdb.Open(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	return demo(db, cmd.OutOrStdout())
}

func demo(db *nornicdb.DB, out io.Writer) error {
	tx1, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx1.Close()
	tx2, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx2.Close()

	ov := tx1.Overlay()
	person, err := ov.LabelGetOrCreate("Person")
	if err != nil {
		return err
	}
	name, err := ov.PropertyKeyGetOrCreate("name")
	if err != nil {
		return err
	}
	knows, err := ov.RelationshipTypeGetOrCreate("KNOWS")
	if err != nil {
		return err
	}

	alice, err := ov.CreateNode()
	if err != nil {
		return err
	}
	if _, err := ov.AddLabel(alice, person); err != nil {
		return err
	}
	if _, err := ov.SetNodeProperty(alice, name, "Alice"); err != nil {
		return err
	}

	// Virtual entities only take virtual property keys.
	virtualName, err := ov.VirtualPropertyKeyGetOrCreate("name")
	if err != nil {
		return err
	}
	guess, err := ov.VirtualRelationshipTypeGetOrCreate("MIGHT_KNOW")
	if err != nil {
		return err
	}
	ghost := ov.CreateVirtualNode()
	if _, err := ov.AddLabel(ghost, person); err != nil {
		return err
	}
	if _, err := ov.SetNodeProperty(ghost, virtualName, "Ghost"); err != nil {
		return err
	}
	if _, err := ov.CreateVirtualRelationship(knows, ghost, alice); err != nil {
		return err
	}
	if _, err := ov.CreateVirtualRelationship(guess, alice, ghost); err != nil {
		return err
	}

	fmt.Fprintf(out, "real node %d (Alice), virtual node %d (Ghost) in tx %s\n", alice, ghost, tx1.Key())
	for i, tx := range []*nornicdb.Tx{tx1, tx2} {
		nodes, err := tx.Overlay().CountNodesWithLabel(person)
		if err != nil {
			return err
		}
		degree, err := tx.Overlay().Degree(alice, storage.Both)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "tx%d: %d :Person nodes, Alice has %d relationships, sees Ghost: %v\n",
			i+1, nodes, degree, tx.Overlay().NodeExists(ghost))
	}

	if err := tx1.Close(); err != nil {
		return err
	}
	stats, err := db.Stats()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "after tx1 closes: %d real nodes, %d real relationships, %d open transactions\n",
		stats.Nodes, stats.Relationships, stats.OpenScopes)
	return nil
}
