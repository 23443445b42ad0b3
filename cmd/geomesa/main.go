// Command geomesa is a thin CLI exercising the schema store, ingest writer,
// planner, and scan pipeline end to end. Grounded on the teacher's
// cmd/datalog/main.go: stdlib flag parsing, a custom flag.Usage, and a
// no-argument demo mode that seeds data and runs a handful of canned
// queries, here reshaped around feature types, predicates, and explain
// plans instead of Datalog queries.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/geomesa/geomesa-core/geomesa"
	"github.com/geomesa/geomesa-core/geomesa/filter"
	"github.com/geomesa/geomesa-core/geomesa/ingest"
	"github.com/geomesa/geomesa-core/geomesa/planner"
	"github.com/geomesa/geomesa-core/geomesa/schema"
	"github.com/geomesa/geomesa-core/geomesa/scan"
	"github.com/geomesa/geomesa-core/geomesa/serde"
	"github.com/geomesa/geomesa-core/geomesa/storage"
)

func main() {
	var dbPath string
	var explainOnly bool
	var help bool

	flag.StringVar(&dbPath, "db", "", "database path")
	flag.BoolVar(&explainOnly, "explain", false, "only print query plans, don't scan")
	flag.BoolVar(&help, "h", false, "show help")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [database_path]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "A spatio-temporal index & query planner demo.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                  # Run demo with an in-memory backend\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s mydata.db        # Run demo against a BadgerDB at mydata.db\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -explain mydata.db  # Print plans only, skip scanning\n", os.Args[0])
	}
	flag.Parse()

	if help {
		flag.Usage()
		os.Exit(0)
	}
	if dbPath == "" && flag.NArg() > 0 {
		dbPath = flag.Arg(0)
	}

	var backend interface {
		ingest.Backend
		scan.Backend
		schema.Backend
	}
	if dbPath == "" {
		backend = storage.NewMemoryBackend()
	} else {
		b, err := storage.NewBadgerBackend(dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer b.Close()
		backend = b
	}

	if err := runDemo(backend, explainOnly); err != nil {
		log.Fatalf("demo failed: %v", err)
	}
}

func runDemo(backend interface {
	ingest.Backend
	scan.Backend
	schema.Backend
}, explainOnly bool) error {
	ctx := context.Background()

	cache, err := schema.NewCache(64, 1024)
	if err != nil {
		return fmt.Errorf("building schema cache: %w", err)
	}
	defer cache.Close()
	store := schema.NewStore(backend, cache)

	ft, err := geomesa.NewFeatureType("sighting", []geomesa.Attribute{
		{Name: "geom", Type: geomesa.TPoint},
		{Name: "dtg", Type: geomesa.TDate},
		{Name: "species", Type: geomesa.TString, Indexed: geomesa.IndexJoin, Cardinality: geomesa.CardinalityLow},
	}, "geom", "dtg")
	if err != nil {
		return fmt.Errorf("building feature type: %w", err)
	}
	ft.EnabledIndexes[geomesa.IndexAttribute] = true

	if err := store.CreateSchema(ctx, ft); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	fmt.Printf("created schema %q with indexes %v\n", ft.Name, enabledIndexNames(ft))

	writer := ingest.NewWriter(backend)

	features := demoFeatures()
	if err := writer.WriteFeatures(ctx, ft, features); err != nil {
		return fmt.Errorf("writing features: %w", err)
	}
	fmt.Printf("wrote %d features\n", len(features))

	p := planner.NewPlanner(nil)
	cardinalityOf := store.CardinalitySource(ctx, ft.Name)

	for name, pred := range demoQueries() {
		hints := planner.DefaultHints()
		exp, err := p.Explain(ft, pred, hints, cardinalityOf)
		if err != nil {
			fmt.Printf("query %s: explain error: %v\n", name, err)
			continue
		}
		printExplanation(name, exp)

		if explainOnly {
			continue
		}

		plan, err := p.Plan(ft, pred, hints, cardinalityOf)
		if err != nil {
			fmt.Printf("query %s: plan error: %v\n", name, err)
			continue
		}
		pipeline := &scan.Pipeline{Backend: backend, Decoder: serde.Codec{}, QueryThreads: hints.QueryThreads}
		rows, errs := pipeline.Run(ctx, plan)
		count := 0
		for range rows {
			count++
		}
		if err := <-errs; err != nil {
			fmt.Printf("query %s: scan error: %v\n", name, err)
			continue
		}
		fmt.Printf("query %s: %d result(s)\n\n", name, count)
	}

	return nil
}

func enabledIndexNames(ft *geomesa.FeatureType) []string {
	var out []string
	for _, k := range []geomesa.IndexKind{geomesa.IndexZ2, geomesa.IndexZ3, geomesa.IndexXZ2, geomesa.IndexXZ3, geomesa.IndexID, geomesa.IndexAttribute} {
		if ft.EnabledIndexes[k] {
			out = append(out, k.String())
		}
	}
	return out
}

func demoFeatures() []*geomesa.Feature {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []*geomesa.Feature{
		{
			ID:     "f1",
			Values: []geomesa.Value{geomesa.Point{X: -73.9, Y: 40.7}, base, "osprey"},
		},
		{
			ID:     "f2",
			Values: []geomesa.Value{geomesa.Point{X: -71.0, Y: 42.3}, base.Add(24 * time.Hour), "heron"},
		},
		{
			ID:     "f3",
			Values: []geomesa.Value{geomesa.Point{X: -73.9, Y: 40.7}, base.Add(48 * time.Hour), "osprey"},
		},
	}
}

func demoQueries() map[string]filter.Pred {
	return map[string]filter.Pred{
		"bbox-nyc":       filter.BBox{Attr: "geom", MinX: -75, MinY: 40, MaxX: -73, MaxY: 41},
		"species-osprey": filter.Cmp{Attr: "species", Op: filter.CmpEQ, Value: "osprey"},
		"by-id":          filter.In{Attr: filter.IDAttr, Values: []geomesa.Value{"f1"}},
	}
}
