// Command archinspect builds a small demo world, registers a query
// against it, and prints the resulting matched-table access plan. It is a
// diagnostic tool for poking at the core from the command line; it has no
// bearing on the core package itself.
package main

import (
	"fmt"
	"os"

	"github.com/kesvarma/archecs"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
)

type position struct{ X, Y float64 }
type velocity struct{ X, Y float64 }

var (
	entityCount int
	profileFlag bool
)

func main() {
	root := &cobra.Command{
		Use:   "archinspect",
		Short: "Inspect an archecs query's compiled matched-table plan",
		RunE:  runInspect,
	}
	root.Flags().IntVar(&entityCount, "entities", 4, "number of demo entities to create")
	root.Flags().BoolVar(&profileFlag, "profile", false, "capture a memory-allocation profile of the run")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
	if profileFlag {
		// Mirrors the teacher's profile/entities/main.go: capture
		// allocation profiling around a CreateEntity/AddComponent/
		// query_new run.
		p := profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
		defer p.Stop()
	}

	w := archecs.NewWorld()

	posID := archecs.RegisterComponent[position](w)
	velID := archecs.RegisterComponent[velocity](w)

	for i := 0; i < entityCount; i++ {
		e := w.CreateEntity()
		w.AddComponent(e, posID)
		if i%2 == 0 {
			w.AddComponent(e, velID)
		}
	}

	sig := archecs.Signature{
		Columns: []archecs.SignatureColumn{
			{Kind: archecs.Self, Operator: archecs.And, Components: []archecs.Entity{posID}},
			{Kind: archecs.Self, Operator: archecs.Optional, Components: []archecs.Entity{velID}},
		},
	}
	q := archecs.NewQuery(w, sig, 0)
	defer q.Free()

	for i, rec := range q.Records() {
		fmt.Printf("table %d: %d rows, %d plan columns, refs=%v\n",
			i, rec.Table.Count(), len(rec.Columns), rec.HasRefs)
		for ci, slot := range rec.Columns {
			fmt.Printf("  column %d: kind=%d index=%d\n", ci, slot.Kind, slot.Index)
		}
	}

	return nil
}
